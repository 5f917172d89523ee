package config

import (
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

func TestSetup(t *testing.T) {
	Convey("Config Setup", t, func() {
		dir := t.TempDir()
		t.Setenv(EnvConfigPath, dir)
		viper.Reset()

		Convey("Should initialize without a config file", func() {
			So(Setup(afero.NewMemMapFs()), ShouldBeNil)
		})

		Convey("Should have default values populated", func() {
			So(Setup(afero.NewMemMapFs()), ShouldBeNil)
			for name, field := range Default {
				So(viper.Get(name), ShouldResemble, field.Value)
			}
		})

		Convey("Should read the TOML file from the config dir", func() {
			fs := afero.NewMemMapFs()
			content := "[play]\nscale = \"320x180\"\nfilters = [\"negate\"]\n\n[logs]\nlevel = \"debug\"\n"
			So(afero.WriteFile(fs, filepath.Join(dir, "avplay.toml"), []byte(content), 0o644), ShouldBeNil)

			So(Setup(fs), ShouldBeNil)
			So(viper.GetString(PlayScale), ShouldEqual, "320x180")
			So(viper.GetStringSlice(PlayFilters), ShouldResemble, []string{"negate"})
			So(viper.GetString(LogsLevel), ShouldEqual, "debug")
		})

		Convey("Should prefer environment variables", func() {
			t.Setenv("AVPLAY_PLAY_SCALE_MODE", "fill")
			So(Setup(afero.NewMemMapFs()), ShouldBeNil)
			So(viper.GetString(PlayScaleMode), ShouldEqual, "fill")
		})

		Convey("Should report a malformed file", func() {
			fs := afero.NewMemMapFs()
			So(afero.WriteFile(fs, filepath.Join(dir, "avplay.toml"), []byte("[play\n"), 0o644), ShouldBeNil)
			So(Setup(fs), ShouldNotBeNil)
		})
	})
}

func TestField(t *testing.T) {
	Convey("Field", t, func() {
		Convey("EnvKeyReplacer should convert dots to underscores", func() {
			So(EnvKeyReplacer.Replace("play.snapshot_dir"), ShouldEqual, "play_snapshot_dir")
		})

		Convey("Env should carry the app prefix", func() {
			So(Default[PlaySnapshotDir].Env(), ShouldEqual, "AVPLAY_PLAY_SNAPSHOT_DIR")
			So(Default[FFmpegLibPath].Env(), ShouldEqual, "AVPLAY_FFMPEG_LIB_PATH")
		})

		Convey("Keys should be sorted and complete", func() {
			keys := Keys()
			So(len(keys), ShouldEqual, len(Default))
			for i := 1; i < len(keys); i++ {
				So(keys[i-1] < keys[i], ShouldBeTrue)
			}
		})
	})
}
