package browser

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestXHRScriptSendsSiteHeaders(t *testing.T) {
	for _, want := range []string{
		"application/json, text/javascript, */*; q=0.01",
		"'X-Requested-With', 'XMLHttpRequest'",
		"'_yatri_session=' + cookie",
		"req.open('GET', url, false)",
	} {
		if !strings.Contains(xhrScript, want) {
			t.Fatalf("xhrScript missing %q", want)
		}
	}
}

func TestOpenUnreachableRemote(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := Open(ctx, Options{ControlURL: "http://127.0.0.1:1"}); err == nil {
		t.Fatalf("expected error for unreachable control url")
	}
}
