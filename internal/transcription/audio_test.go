package transcription

import (
	"reflect"
	"testing"
)

func TestValidateAudioFormat(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"talk.wav", true},
		{"talk.MP3", true},
		{"talk.m4a", true},
		{"talk.Flac", true},
		{"talk.ogg", false},
		{"talk", false},
	}
	for _, tt := range tests {
		if got := ValidateAudioFormat(tt.name); got != tt.want {
			t.Errorf("ValidateAudioFormat(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestFFmpegArgs(t *testing.T) {
	cfg := ProcessingConfig{SampleRate: 16000, Channels: 1, Format: "wav", Normalize: true}
	got := ffmpegArgs("in.mp3", "out.wav", cfg)
	want := []string{"-i", "in.mp3", "-ar", "16000", "-ac", "1", "-af", "loudnorm", "-c:a", "pcm_s16le", "-y", "out.wav"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ffmpegArgs = %v, want %v", got, want)
	}

	cfg = ProcessingConfig{SampleRate: 44100, Channels: 2, Format: "mp3"}
	got = ffmpegArgs("in.wav", "out.mp3", cfg)
	want = []string{"-i", "in.wav", "-ar", "44100", "-ac", "2", "-y", "out.mp3"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ffmpegArgs = %v, want %v", got, want)
	}
}

func TestParseProbe(t *testing.T) {
	data := []byte(`{
		"streams": [
			{"codec_type": "video"},
			{"codec_type": "audio", "sample_rate": "44100", "channels": 2}
		],
		"format": {"duration": "12.500000", "size": "1024"}
	}`)
	meta, err := parseProbe(data)
	if err != nil {
		t.Fatalf("parseProbe: %v", err)
	}
	if meta.Duration != 12.5 || meta.SampleRate != 44100 || meta.Channels != 2 {
		t.Errorf("parseProbe = %+v", meta)
	}

	if _, err := parseProbe([]byte(`{"streams": [], "format": {}}`)); err == nil {
		t.Error("expected error without an audio stream")
	}
}

func TestParseWhisperOutput(t *testing.T) {
	data := []byte(`{
		"text": "hello there. okay",
		"segments": [
			{"start": 0, "end": 1.5, "text": " hello there.", "words": [
				{"word": " hello", "start": 0, "end": 0.6, "probability": 0.9},
				{"word": " there.", "start": 0.6, "end": 1.5, "probability": 0.8}
			]},
			{"start": 2, "end": 3, "text": " okay", "avg_logprob": 0},
			{"start": 3, "end": 4, "text": "   "}
		]
	}`)
	units, err := parseWhisperOutput(data)
	if err != nil {
		t.Fatalf("parseWhisperOutput: %v", err)
	}
	if len(units) != 3 {
		t.Fatalf("got %d units, want 3: %+v", len(units), units)
	}
	if units[0].Text != "hello" || units[0].Confidence != 0.9 {
		t.Errorf("units[0] = %+v", units[0])
	}
	if units[2].Text != "okay" || units[2].Start != 2 || units[2].Confidence != 1 {
		t.Errorf("units[2] = %+v", units[2])
	}
}

func TestParseTurns(t *testing.T) {
	turns, err := parseTurns([]byte("\n[{\"start\":0,\"end\":2.5,\"speaker\":\"SPEAKER_00\"}]\n"))
	if err != nil {
		t.Fatalf("parseTurns: %v", err)
	}
	if len(turns) != 1 || turns[0].Speaker != "SPEAKER_00" || turns[0].End != 2.5 {
		t.Errorf("parseTurns = %+v", turns)
	}

	if _, err := parseTurns([]byte(`[{"start":3,"end":1,"speaker":"x"}]`)); err == nil {
		t.Error("expected error for inverted turn")
	}
	if _, err := parseTurns([]byte(`loading model...`)); err == nil {
		t.Error("expected error for non-JSON output")
	}
}

func TestWhisperArgs(t *testing.T) {
	hasFlag := func(args []string, flag, value string) bool {
		for i := 0; i+1 < len(args); i++ {
			if args[i] == flag && args[i+1] == value {
				return true
			}
		}
		return false
	}

	def := NewWhisperTranscriber(WhisperParams{WorkDir: t.TempDir()})
	if def.params.Backend != BackendStableTS || def.params.Command != "stable-ts" {
		t.Errorf("defaults = %s/%s, want stable-ts/stable-ts", def.params.Backend, def.params.Command)
	}
	args, jsonPath := def.args("/audio/talk.wav", "/out")
	if !hasFlag(args, "--vad", "True") || !hasFlag(args, "--word_timestamps", "True") {
		t.Errorf("default args %v lack --vad/--word_timestamps", args)
	}
	if jsonPath != "/out/talk.json" || !hasFlag(args, "--output", jsonPath) {
		t.Errorf("jsonPath = %q, args = %v", jsonPath, args)
	}

	fallback := NewWhisperTranscriber(WhisperParams{Backend: BackendWhisper, WorkDir: t.TempDir()})
	if fallback.params.Command != "python" {
		t.Errorf("whisper backend command = %q, want python", fallback.params.Command)
	}
	args, _ = fallback.args("/audio/talk.wav", "/out")
	if args[0] != "-m" || args[1] != "whisper" || !hasFlag(args, "--word_timestamps", "True") {
		t.Errorf("whisper args = %v", args)
	}
}
