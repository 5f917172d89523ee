package config

// Logging
const (
	LogsWrite = "logs.write"
	LogsLevel = "logs.level"
	LogsJSON  = "logs.json"
	LogsDir   = "logs.dir"
)

// Command line
const (
	CliColored = "cli.colored"
)

// Native providers
const (
	FFmpegLibPath = "ffmpeg.lib_path"
)

// Playback
const (
	PlayRealtime      = "play.realtime"
	PlayAudioOut      = "play.audio_out"
	PlayVideo         = "play.video"
	PlaySnapshotDir   = "play.snapshot_dir"
	PlaySnapshotEvery = "play.snapshot_every"
	PlaySubtitles     = "play.subtitles"
	PlaySubtitleDir   = "play.subtitle_dir"
	PlayScale         = "play.scale"
	PlayScaleMode     = "play.scale_mode"
	PlayFilters       = "play.filters"
	PlayVideoCodec    = "play.video_codec"
	PlayAudioCodec    = "play.audio_codec"
	PlaySubtitleCodec = "play.subtitle_codec"
	PlayLanguage      = "play.language"
	PlayStart         = "play.start"
)
