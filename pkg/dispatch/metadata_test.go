package dispatch

import (
	"testing"

	"github.com/matryer/is"
)

func TestParseMetadata(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Metadata
	}{
		{
			name: "full english dispatch",
			raw:  "session:abc-123|question:adjectives|subject:orchestrator",
			want: Metadata{"session": "abc-123", "question": "adjectives", "subject": "orchestrator"},
		},
		{
			name: "return from english",
			raw:  "return_from_english:abc-123|question:what is a verb",
			want: Metadata{"return_from_english": "abc-123", "question": "what is a verb"},
		},
		{
			name: "empty",
			raw:  "",
			want: Metadata{},
		},
		{
			name: "unknown keys preserved",
			raw:  "session:abc|color:blue",
			want: Metadata{"session": "abc", "color": "blue"},
		},
		{
			name: "malformed segments skipped",
			raw:  "session:abc||noseparator|:novalue",
			want: Metadata{"session": "abc"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			is := is.New(t)
			is.Equal(ParseMetadata(tt.raw), tt.want)
		})
	}
}

func TestMetadataRoundTrip(t *testing.T) {
	is := is.New(t)

	md := Metadata{
		KeySession:  "9f2c1a7e",
		KeyQuestion: "seven times eight",
		KeySubject:  "math",
	}
	is.Equal(ParseMetadata(md.Format()), md)
}

func TestMetadataFormatIsDeterministic(t *testing.T) {
	is := is.New(t)

	md := Metadata{"session": "a", "question": "b", "subject": "c"}
	is.Equal(md.Format(), "question:b|session:a|subject:c")
}

func TestSessionID(t *testing.T) {
	is := is.New(t)

	is.Equal(ParseMetadata("session:abc").SessionID(), "abc")
	is.Equal(ParseMetadata("return_from_english:xyz").SessionID(), "xyz")
	is.Equal(ParseMetadata("question:hi").SessionID(), "")
}

func TestIsReturnFromEnglish(t *testing.T) {
	is := is.New(t)

	is.True(ParseMetadata("return_from_english:abc").IsReturnFromEnglish())
	is.True(!ParseMetadata("session:abc").IsReturnFromEnglish())
}
