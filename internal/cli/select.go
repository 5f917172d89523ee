package cli

import (
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/samber/lo"

	"github.com/thesyncim/avplay"
)

// matchCodec returns the stream whose codec name, or long name, fuzzy-matches
// query best.
func matchCodec[T avplay.Stream](streams []T, query string) (T, bool) {
	var zero T
	if query == "" || len(streams) == 0 {
		return zero, false
	}
	targets := lo.Map(streams, func(s T, _ int) string {
		return s.CodecName() + " " + s.LongCodecName()
	})
	ranks := fuzzy.RankFindFold(query, targets)
	if len(ranks) == 0 {
		return zero, false
	}
	sort.Sort(ranks)
	return streams[ranks[0].OriginalIndex], true
}

func matchLanguage[T avplay.Stream](streams []T, lang string) (T, bool) {
	if lang == "" {
		var zero T
		return zero, false
	}
	return lo.Find(streams, func(s T) bool { return strings.EqualFold(s.Language(), lang) })
}

// pickVideo prefers a codec match, then the largest picture.
func pickVideo(streams []*avplay.VideoStream, codec string) *avplay.VideoStream {
	if len(streams) == 0 {
		return nil
	}
	if s, ok := matchCodec(streams, codec); ok {
		return s
	}
	return lo.MaxBy(streams, func(a, b *avplay.VideoStream) bool {
		return a.Width()*a.Height() > b.Width()*b.Height()
	})
}

// pickAudio prefers a codec match, then a language match, then the first
// stream.
func pickAudio(streams []*avplay.AudioStream, codec, lang string) *avplay.AudioStream {
	if len(streams) == 0 {
		return nil
	}
	if s, ok := matchCodec(streams, codec); ok {
		return s
	}
	if s, ok := matchLanguage(streams, lang); ok {
		return s
	}
	return streams[0]
}

// pickSubtitle is pickAudio for subtitles.
func pickSubtitle(streams []*avplay.SubtitleStream, codec, lang string) *avplay.SubtitleStream {
	if len(streams) == 0 {
		return nil
	}
	if s, ok := matchCodec(streams, codec); ok {
		return s
	}
	if s, ok := matchLanguage(streams, lang); ok {
		return s
	}
	return streams[0]
}
