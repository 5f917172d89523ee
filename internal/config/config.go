// Package config holds the avplay settings: the defaults table, environment
// bindings and the TOML file in the user config directory.
package config

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

// App is the configuration name, environment prefix and directory name.
const App = "avplay"

// EnvConfigPath overrides the configuration directory.
const EnvConfigPath = "AVPLAY_CONFIG_PATH"

// EnvKeyReplacer turns configuration keys into environment variable names.
var EnvKeyReplacer = strings.NewReplacer(".", "_")

// Field is one configuration entry.
type Field struct {
	Key         string
	Value       any
	Description string
}

// Env returns the environment variable bound to the field.
func (f Field) Env() string {
	return strings.ToUpper(App + "_" + EnvKeyReplacer.Replace(f.Key))
}

// Default holds every configuration field by key.
var Default = make(map[string]Field)

func init() {
	register := func(k string, v any, desc string) {
		if _, exists := Default[k]; exists {
			panic("duplicate config key: " + k)
		}
		Default[k] = Field{Key: k, Value: v, Description: desc}
	}

	register(LogsWrite, false, "Write logs to a file instead of stderr")
	register(LogsLevel, "info", "Log level: panic, fatal, error, warn, info, debug, trace")
	register(LogsJSON, false, "Use json format for logs")
	register(LogsDir, "", "Directory for log files. Defaults to <config dir>/logs")
	register(CliColored, true, "Enable colored help output")
	register(FFmpegLibPath, "", "Path to libavplay_ffmpeg, exported as AVPLAY_FFMPEG_LIB_PATH")
	register(PlayRealtime, true, "Pace video frames by their duration")
	register(PlayAudioOut, "", "Write S16LE PCM to this file, \"-\" for stdout")
	register(PlayVideo, true, "Decode the video stream")
	register(PlaySnapshotDir, "", "Directory for PNG snapshots of video frames")
	register(PlaySnapshotEvery, 0, "Snapshot every Nth video frame, 0 disables")
	register(PlaySubtitles, "terminal", "Subtitle output: terminal or none")
	register(PlaySubtitleDir, "", "Directory for PNG dumps of bitmap subtitles")
	register(PlayScale, "", "Output size as WIDTHxHEIGHT, empty keeps the stream size")
	register(PlayScaleMode, "fit", "Scale mode: fit, fill or stretch")
	register(PlayFilters, []string{}, "Video filters: negate, grayscale")
	register(PlayVideoCodec, "", "Prefer the video stream whose codec fuzzy-matches this")
	register(PlayAudioCodec, "", "Prefer the audio stream whose codec fuzzy-matches this")
	register(PlaySubtitleCodec, "", "Prefer the subtitle stream whose codec fuzzy-matches this")
	register(PlayLanguage, "", "Prefer audio and subtitle streams in this language")
	register(PlayStart, 0, "Start position in milliseconds")
}

// Keys returns the registered keys, sorted.
func Keys() []string {
	keys := make([]string, 0, len(Default))
	for k := range Default {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Dir returns the configuration directory without creating it.
func Dir() string {
	if custom, ok := os.LookupEnv(EnvConfigPath); ok {
		return custom
	}
	base, err := os.UserConfigDir()
	if err != nil {
		base = "."
	}
	return filepath.Join(base, App)
}

// Setup loads defaults, environment bindings and the optional config file
// from fs. A missing file is not an error.
func Setup(fs afero.Fs) error {
	viper.SetConfigName(App)
	viper.SetConfigType("toml")
	viper.SetFs(fs)
	viper.AddConfigPath(Dir())

	viper.SetEnvPrefix(App)
	viper.SetEnvKeyReplacer(EnvKeyReplacer)
	for _, k := range Keys() {
		viper.MustBindEnv(k)
	}

	viper.SetTypeByDefaultValue(true)
	for name, field := range Default {
		viper.SetDefault(name, field.Value)
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return err
		}
	}

	// The env binding of this key is the variable the FFmpeg loader reads, so
	// only a value from the file needs exporting.
	if path := viper.GetString(FFmpegLibPath); path != "" {
		return os.Setenv("AVPLAY_FFMPEG_LIB_PATH", path)
	}
	return nil
}
