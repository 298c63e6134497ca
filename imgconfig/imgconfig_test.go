package imgconfig

import (
	"encoding/json"
	"testing"

	"github.com/opencontainers/go-digest"
	ociv1 "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/ocipack/ocipack/pkg/archive"
	"github.com/ocipack/ocipack/types"
	"github.com/ocipack/ocipack/types/blob"
	"github.com/ocipack/ocipack/types/manifest"
)

func newOCIManifest(t *testing.T) manifest.Manifest {
	t.Helper()
	orig := ociv1.Manifest{
		MediaType: types.MediaTypeOCI1Manifest,
		Config:    ociv1.Descriptor{MediaType: types.MediaTypeOCI1ImageConfig, Size: 10},
		Layers:    []ociv1.Descriptor{{MediaType: types.MediaTypeOCI1LayerGzip, Size: 100}},
	}
	m, err := manifest.New(manifest.WithOrig(orig))
	if err != nil {
		t.Fatalf("manifest.New: %v", err)
	}
	return m
}

func TestAddTopLayerOCI(t *testing.T) {
	m := newOCIManifest(t)
	d := digest.NewDigestFromEncoded(digest.SHA256, zeroes())
	if err := AddTopLayer(m, 200, d, archive.CompressGzip); err != nil {
		t.Fatalf("AddTopLayer: %v", err)
	}
	layers, err := m.GetLayers()
	if err != nil {
		t.Fatalf("GetLayers: %v", err)
	}
	if len(layers) != 2 {
		t.Fatalf("expected 2 layers, got %d", len(layers))
	}
	if layers[0].Size != 200 {
		t.Errorf("expected new layer at index 0, got size %d", layers[0].Size)
	}
}

func zeroes() string {
	b := make([]byte, 64)
	for i := range b {
		b[i] = '0'
	}
	return string(b)
}

func newConfig() *Config {
	oc := blob.NewOCIConfig(blob.WithImage(ociv1.Image{
		Config: ociv1.ImageConfig{},
	}))
	return New(oc)
}

func TestAddLabelsOCIMergesAndWins(t *testing.T) {
	c := newConfig()
	c.AddLabels(map[string]string{"a": "1"}, OCI)
	c.AddLabels(map[string]string{"a": "2", "b": "3"}, OCI)
	img := c.Image()
	if img.Config.Labels["a"] != "2" || img.Config.Labels["b"] != "3" {
		t.Errorf("unexpected labels: %+v", img.Config.Labels)
	}
}

func TestAddLabelsDockerDropsThem(t *testing.T) {
	c := newConfig()
	c.AddLabels(map[string]string{"a": "1"}, Docker)
	img := c.Image()
	if len(img.Config.Labels) != 0 {
		t.Errorf("expected labels dropped for docker dialect, got %+v", img.Config.Labels)
	}
}

func TestAddEnvsAppends(t *testing.T) {
	c := newConfig()
	c.AddEnvs(map[string]string{"FOO": "bar"})
	img := c.Image()
	if len(img.Config.Env) != 1 || img.Config.Env[0] != "FOO=bar" {
		t.Errorf("unexpected env: %+v", img.Config.Env)
	}
}

func TestOverwriteFields(t *testing.T) {
	c := newConfig()
	c.OverwriteCmd([]string{"/bin/sh"})
	c.OverwriteEntrypoint([]string{"/entrypoint.sh"})
	c.OverwriteWorkDir("/app")
	c.OverwriteUser("1000")
	img := c.Image()
	if img.Config.WorkingDir != "/app" || img.Config.User != "1000" {
		t.Errorf("unexpected config: %+v", img.Config)
	}
	if len(img.Config.Cmd) != 1 || img.Config.Cmd[0] != "/bin/sh" {
		t.Errorf("unexpected cmd: %+v", img.Config.Cmd)
	}
	if len(img.Config.Entrypoint) != 1 || img.Config.Entrypoint[0] != "/entrypoint.sh" {
		t.Errorf("unexpected entrypoint: %+v", img.Config.Entrypoint)
	}
}

func TestAddPortsMerges(t *testing.T) {
	c := newConfig()
	c.AddPorts([]string{"80/tcp"})
	c.AddPorts([]string{"443/tcp"})
	img := c.Image()
	if _, ok := img.Config.ExposedPorts["80/tcp"]; !ok {
		t.Errorf("missing 80/tcp")
	}
	if _, ok := img.Config.ExposedPorts["443/tcp"]; !ok {
		t.Errorf("missing 443/tcp")
	}
}

func TestSerializeIsDeterministic(t *testing.T) {
	c := newConfig()
	c.OverwriteUser("1000")
	raw1, d1, size1, err := c.Serialize()
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	raw2, d2, size2, err := c.Serialize()
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	if string(raw1) != string(raw2) || d1 != d2 || size1 != size2 {
		t.Errorf("serialize not deterministic")
	}
	var roundtrip ociv1.Image
	if err := json.Unmarshal(raw1, &roundtrip); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if roundtrip.Config.User != "1000" {
		t.Errorf("unexpected roundtrip user: %s", roundtrip.Config.User)
	}
}
