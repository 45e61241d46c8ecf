package models

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDescriptor_QueryValue(t *testing.T) {
	d := Descriptor{Query: map[string]string{"t": "abc"}}
	assert.Equal(t, "abc", d.QueryValue("t"))
	assert.Equal(t, "", d.QueryValue("missing"))

	var empty Descriptor
	assert.Equal(t, "", empty.QueryValue("t"))
}

func TestSubmission_Validate(t *testing.T) {
	tests := []struct {
		name       string
		submission Submission
		wantErr    string
	}{
		{
			name:       "solved",
			submission: Submission{Challenge: "c.s", Nonce: "12345"},
		},
		{
			name:       "fallback without nonce",
			submission: Submission{Challenge: "c.s", Fallback: true},
		},
		{
			name:       "missing challenge",
			submission: Submission{Nonce: "1"},
			wantErr:    "challenge is required",
		},
		{
			name:       "oversized challenge",
			submission: Submission{Challenge: strings.Repeat("a", maxChallengeLength+1), Nonce: "1"},
			wantErr:    "challenge is too long",
		},
		{
			name:       "missing nonce",
			submission: Submission{Challenge: "c.s"},
			wantErr:    "nonce is required",
		},
		{
			name:       "oversized nonce",
			submission: Submission{Challenge: "c.s", Nonce: strings.Repeat("9", maxNonceLength+1)},
			wantErr:    "nonce is too long",
		},
		{
			name: "oversized fingerprint",
			submission: Submission{
				Challenge:   "c.s",
				Nonce:       "1",
				Fingerprint: Fingerprint{Timezone: strings.Repeat("z", maxSignalLength+1)},
			},
			wantErr: "fingerprint signal is too long",
		},
		{
			name: "negative telemetry",
			submission: Submission{
				Challenge: "c.s",
				Nonce:     "1",
				Telemetry: Telemetry{PointerMoves: -1},
			},
			wantErr: "telemetry counters cannot be negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.submission.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.EqualError(t, err, tt.wantErr)
		})
	}
}

func TestSubmission_Normalize(t *testing.T) {
	s := Submission{
		Nonce: " 42 ",
		Fingerprint: Fingerprint{
			Timezone: " Europe/Paris\n",
			Screen:   "\t1920x1080 ",
		},
	}
	s.Normalize()

	assert.Equal(t, "42", s.Nonce)
	assert.Equal(t, "Europe/Paris", s.Fingerprint.Timezone)
	assert.Equal(t, "1920x1080", s.Fingerprint.Screen)
}
