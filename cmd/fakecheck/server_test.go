package main

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	fakecheck "github.com/anatolykoptev/go-fakecheck"
)

// stripes draws vertical bars whose width depends on period.
func stripes(period int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 96, 96))
	for y := range 96 {
		for x := range 96 {
			c := color.RGBA{R: 30, G: 30, B: 30, A: 255}
			if (x/period)%2 == 0 {
				c = color.RGBA{R: 230, G: 210, B: 40, A: 255}
			}
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func writePNG(t *testing.T, dir, name string, img image.Image) string {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestServer(t *testing.T, allowPaths bool) *httptest.Server {
	t.Helper()
	engine, err := fakecheck.New(fakecheck.Config{})
	if err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(newRouter(&server{
		engine:     engine,
		threshold:  fakecheck.DefaultDuplicateThreshold,
		allowPaths: allowPaths,
	}))
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var payload []byte
	switch b := body.(type) {
	case string:
		payload = []byte(b)
	default:
		var err error
		if payload, err = json.Marshal(b); err != nil {
			t.Fatal(err)
		}
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	return resp, out
}

func TestServer_Healthz(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, false)
	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if resp.Header.Get("X-Request-Id") == "" {
		t.Error("missing X-Request-Id header")
	}
	var body struct {
		Status  string   `json:"status"`
		Methods []string `json:"methods"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "ok" || len(body.Methods) != 2 {
		t.Errorf("healthz = %+v, want ok with hash and geometric", body)
	}
}

func TestServer_Similarity(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	a := writePNG(t, dir, "a.png", stripes(6))
	srv := newTestServer(t, true)

	resp, out := postJSON(t, srv.URL+"/v1/similarity", map[string]any{"a": a, "b": a})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body %v", resp.StatusCode, out)
	}
	if out["loaded"] != true {
		t.Errorf("loaded = %v, want true", out["loaded"])
	}
	if hash, _ := out["hash"].(float64); hash < 0.95 {
		t.Errorf("hash = %v, want >= 0.95", out["hash"])
	}

	resp, out = postJSON(t, srv.URL+"/v1/similarity", map[string]any{
		"a": a, "b": a, "weights": map[string]float64{"hash": 1},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if w, _ := out["weights"].(map[string]any); w["hash"] != 1.0 {
		t.Errorf("weights = %v, want hash only", out["weights"])
	}
}

func TestServer_BadRequests(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, false)

	tests := []struct {
		name     string
		path     string
		body     any
		wantCode string
	}{
		{name: "malformed json", path: "/v1/similarity", body: `{"a":`, wantCode: "INVALID_JSON"},
		{name: "unknown field", path: "/v1/duplicates", body: `{"pictures":[]}`, wantCode: "INVALID_JSON"},
		{name: "missing image", path: "/v1/similarity", body: map[string]any{"a": "https://example.com/a.jpg"}, wantCode: "INVALID_REQUEST"},
		{name: "paths disabled", path: "/v1/duplicates", body: map[string]any{"images": []string{"/etc/passwd"}}, wantCode: "PATH_NOT_ALLOWED"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			resp, out := postJSON(t, srv.URL+tc.path, tc.body)
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}
			if out["code"] != tc.wantCode || out["status"] != "error" {
				t.Errorf("body = %v, want code %s", out, tc.wantCode)
			}
			if out["request_id"] == "" || out["request_id"] == nil {
				t.Error("error body without request_id")
			}
		})
	}
}

func TestServer_Detect(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, false)
	resp, out := postJSON(t, srv.URL+"/v1/detect", map[string]any{
		"references": []map[string]any{
			{"brand": "Gucci", "name": "GG Marmont", "description": "matelasse shoulder bag", "official_price": 2000},
		},
		"listings": []map[string]any{
			{"title": "Gucci GG Marmont matelasse shoulder bag replica AAA 1:1 mirror", "price": 40, "source_site": "AliExpress"},
			{"title": "Plain canvas tote", "price": 15},
		},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body %v", resp.StatusCode, out)
	}
	results, _ := out["results"].([]any)
	if len(results) != 2 {
		t.Fatalf("results = %v, want 2", out["results"])
	}
	first, _ := results[0].(map[string]any)
	if risk, _ := first["overall_risk_score"].(float64); risk <= 0.5 {
		t.Errorf("first listing risk = %v, want > 0.5", risk)
	}
	reasons, _ := first["reasons"].([]any)
	if len(reasons) == 0 || !strings.HasPrefix(reasons[0].(string), "Detected brands: Gucci") {
		t.Errorf("reasons = %v", reasons)
	}
	second, _ := results[1].(map[string]any)
	if second["overall_risk_score"] != 0.0 || second["is_counterfeit"] != false {
		t.Errorf("unbranded listing = %v, want zero risk", second)
	}
}

func TestServer_Duplicates(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	a := writePNG(t, dir, "a.png", stripes(6))
	b := writePNG(t, dir, "b.png", stripes(6))
	c := writePNG(t, dir, "c.png", stripes(24))
	srv := newTestServer(t, true)

	resp, out := postJSON(t, srv.URL+"/v1/duplicates", map[string]any{"images": []string{a, b, c}})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body %v", resp.StatusCode, out)
	}
	groups, _ := out["groups"].([]any)
	if len(groups) != 1 {
		t.Fatalf("groups = %v, want one", out["groups"])
	}
	ids, _ := groups[0].(map[string]any)["ids"].([]any)
	if len(ids) != 2 || ids[0] != a || ids[1] != b {
		t.Errorf("group ids = %v, want [%s %s]", ids, a, b)
	}
}

func pngDataURL(t *testing.T, img image.Image) string {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return fakecheck.EncodeDataURL(buf.Bytes(), "image/png")
}

func TestServer_DuplicatesInlineImages(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, false)
	images := []any{
		pngDataURL(t, stripes(24)),
		pngDataURL(t, stripes(6)),
		pngDataURL(t, stripes(6)),
		map[string]string{"id": "catalogue-front", "src": pngDataURL(t, stripes(24))},
	}

	resp, out := postJSON(t, srv.URL+"/v1/duplicates", map[string]any{"images": images})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body %v", resp.StatusCode, out)
	}
	groups, _ := out["groups"].([]any)
	if len(groups) != 2 {
		t.Fatalf("groups = %v, want two", out["groups"])
	}

	want := [][]string{{"images[0]", "catalogue-front"}, {"images[1]", "images[2]"}}
	for i, g := range groups {
		ids, _ := g.(map[string]any)["ids"].([]any)
		if len(ids) != len(want[i]) {
			t.Fatalf("group %d = %v, want %v", i, ids, want[i])
		}
		for j, id := range ids {
			if id != want[i][j] {
				t.Errorf("group %d = %v, want %v", i, ids, want[i])
				break
			}
		}
	}
}
