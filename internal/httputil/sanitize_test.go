package httputil

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"valid HTTPS", "https://example.com/path", false},
		{"HTTP remote rejected", "http://example.com/path", true},
		{"HTTP localhost", "http://localhost:8080/status", false},
		{"HTTP loopback v4", "http://127.0.0.1:9091/stats.json", false},
		{"HTTP loopback v6", "http://[::1]:9091/stats.json", false},
		{"HTTP private lan rejected", "http://192.168.1.5/status", true},
		{"javascript scheme rejected", "javascript:alert(1)", true},
		{"FTP rejected", "ftp://example.com/file", true},
		{"empty string", "", true},
		{"no host", "https://", true},
		{"valid with query", "https://example.com/path?q=test&a=b", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateURL(tt.url)
			if tt.wantErr {
				assert.Error(t, err, "ValidateURL(%q)", tt.url)
			} else {
				assert.NoError(t, err, "ValidateURL(%q)", tt.url)
			}
		})
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"normal", "Movie Title (2023).srt", "Movie Title (2023).srt"},
		{"path traversal", "../../etc/passwd", "passwd"},
		{"colon", "Title: Subtitle.vtt", "Title_ Subtitle.vtt"},
		{"null byte", "file\x00name", "filename"},
		{"empty", "", "untitled"},
		{"dot", ".", "untitled"},
		{"special chars", `a<b>c|d"e*f?g`, "a_b_c_d_e_f_g"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeFilename(tt.input))
		})
	}
}

func TestFilenameFromURL(t *testing.T) {
	assert.Equal(t, "en.vtt", FilenameFromURL("https://cdn.example.com/subs/en.vtt?token=abc", "subtitle.vtt"))
	assert.Equal(t, "subtitle.vtt", FilenameFromURL("https://cdn.example.com/", "subtitle.vtt"))
	assert.Equal(t, "subtitle.vtt", FilenameFromURL("://bad", "subtitle.vtt"))
}

func TestIsRemote(t *testing.T) {
	assert.True(t, IsRemote("https://example.com/a.srt"))
	assert.True(t, IsRemote("http://localhost/a.srt"))
	assert.False(t, IsRemote("/home/user/a.srt"))
	assert.False(t, IsRemote("-"))
}

func TestGetJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	// httptest listens on 127.0.0.1, so plain HTTP passes validation.
	require.True(t, strings.HasPrefix(srv.URL, "http://127.0.0.1"))

	body, err := GetJSON(context.Background(), srv.Client(), srv.URL+"/status")
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(body))

	_, err = GetJSON(context.Background(), srv.Client(), srv.URL+"/missing")
	assert.Error(t, err)
}

func TestDownloadLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("x", 100)))
	}))
	defer srv.Close()

	var buf strings.Builder
	err := Download(context.Background(), srv.Client(), srv.URL, &buf, 10)
	assert.ErrorIs(t, err, ErrTooLarge)

	buf.Reset()
	require.NoError(t, Download(context.Background(), srv.Client(), srv.URL, &buf, 100), "exactly at the limit")
	assert.Equal(t, 100, buf.Len())
}
