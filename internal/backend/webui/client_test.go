package webui_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/seantiz/easel/internal/backend"
	"github.com/seantiz/easel/internal/backend/webui"
	"github.com/seantiz/easel/internal/backend/webuitest"
	"github.com/seantiz/easel/internal/model"
)

func newRequest() *webui.Txt2ImgRequest {
	return webui.NewTxt2ImgRequest(model.Task{Prompt: "a cat", Regions: 1, Params: model.DefaultParams()})
}

func TestPing(t *testing.T) {
	fake := webuitest.NewServer()
	defer fake.Close()
	c := webui.NewClient(time.Second)

	if err := c.Ping(context.Background(), fake.URL()); err != nil {
		t.Fatalf("Ping alive backend: %v", err)
	}

	fake.SetDead(true)
	if err := c.Ping(context.Background(), fake.URL()); err == nil {
		t.Error("Ping dead backend returned nil error")
	}
}

func TestPingUnreachable(t *testing.T) {
	c := webui.NewClient(time.Second)
	if err := c.Ping(context.Background(), "http://127.0.0.1:1"); err == nil {
		t.Error("Ping unreachable address returned nil error")
	}
}

func TestRenderSuccess(t *testing.T) {
	fake := webuitest.NewServer()
	defer fake.Close()
	c := webui.NewClient(5 * time.Second)

	img, err := c.Render(context.Background(), fake.URL(), newRequest())
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !bytes.HasPrefix(img, []byte("\x89PNG")) {
		t.Errorf("Render returned %d bytes without a PNG signature", len(img))
	}

	reqs := fake.Requests()
	if len(reqs) != 1 || reqs[0].Prompt != "a cat" {
		t.Errorf("captured requests = %+v", reqs)
	}
}

func TestRenderFailureModes(t *testing.T) {
	tests := []struct {
		name    string
		mode    webuitest.Mode
		wantErr error
	}{
		{"server error", webuitest.ModeFail, backend.ErrBackendRequestFailed},
		{"no images", webuitest.ModeNoImages, backend.ErrBackendRequestFailed},
		{"undecodable image", webuitest.ModeBadImage, backend.ErrArtifactDecodeFailed},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fake := webuitest.NewServer()
			defer fake.Close()
			fake.SetMode(tc.mode)

			_, err := webui.NewClient(5*time.Second).Render(context.Background(), fake.URL(), newRequest())
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("Render error = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestRenderTimeout(t *testing.T) {
	fake := webuitest.NewServer()
	defer fake.Close()
	fake.SetDelay(2 * time.Second)

	_, err := webui.NewClient(50*time.Millisecond).Render(context.Background(), fake.URL(), newRequest())
	if !errors.Is(err, backend.ErrBackendRequestFailed) {
		t.Errorf("Render error = %v, want ErrBackendRequestFailed", err)
	}
}

func TestRenderMalformedJSON(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("<html>proxy error</html>"))
	}))
	defer ts.Close()

	_, err := webui.NewClient(time.Second).Render(context.Background(), ts.URL, newRequest())
	if !errors.Is(err, backend.ErrBackendRequestFailed) {
		t.Errorf("Render error = %v, want ErrBackendRequestFailed", err)
	}
}

func TestDecodeImage(t *testing.T) {
	png := webuitest.PNG(7)
	encoded := base64.StdEncoding.EncodeToString(png)

	got, err := webui.DecodeImage(encoded)
	if err != nil || !bytes.Equal(got, png) {
		t.Errorf("DecodeImage(plain) = %d bytes, %v", len(got), err)
	}

	got, err = webui.DecodeImage("data:image/png;base64," + encoded)
	if err != nil || !bytes.Equal(got, png) {
		t.Errorf("DecodeImage(data URI) = %d bytes, %v", len(got), err)
	}

	if _, err := webui.DecodeImage("!!!not base64"); !errors.Is(err, backend.ErrArtifactDecodeFailed) {
		t.Errorf("DecodeImage(garbage) error = %v, want ErrArtifactDecodeFailed", err)
	}
}
