package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"text/tabwriter"

	digest "github.com/opencontainers/go-digest"
	ociv1 "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/ocipack/ocipack/internal/units"
	"github.com/ocipack/ocipack/types"
	"github.com/ocipack/ocipack/types/platform"
)

const (
	// MediaTypeOCI1Manifest is the OCI v1 single-platform manifest media type.
	MediaTypeOCI1Manifest = types.MediaTypeOCI1Manifest
	// MediaTypeOCI1ManifestList is the OCI v1 index media type.
	MediaTypeOCI1ManifestList = types.MediaTypeOCI1ManifestList
)

type oci1Manifest struct {
	common
	ociv1.Manifest
}
type oci1Index struct {
	common
	ociv1.Index
}

func (m *oci1Manifest) GetAnnotations() (map[string]string, error) {
	if !m.manifSet {
		return nil, fmt.Errorf("manifest is not set")
	}
	return m.Annotations, nil
}
func (m *oci1Manifest) GetConfig() (types.Descriptor, error) {
	return ociDescToDesc(m.Config), nil
}
func (m *oci1Manifest) GetConfigDigest() (digest.Digest, error) {
	return m.Config.Digest, nil
}
func (m *oci1Index) GetAnnotations() (map[string]string, error) {
	if !m.manifSet {
		return nil, fmt.Errorf("manifest is not set")
	}
	return m.Annotations, nil
}
func (m *oci1Index) GetConfig() (types.Descriptor, error) {
	return types.Descriptor{}, fmt.Errorf("config digest not available for media type %s: %w", m.desc.MediaType, types.ErrUnsupportedMediaType)
}
func (m *oci1Index) GetConfigDigest() (digest.Digest, error) {
	return "", fmt.Errorf("config digest not available for media type %s: %w", m.desc.MediaType, types.ErrUnsupportedMediaType)
}

func (m *oci1Manifest) GetManifestList() ([]types.Descriptor, error) {
	return []types.Descriptor{}, fmt.Errorf("platform descriptor list not available for media type %s: %w", m.desc.MediaType, types.ErrUnsupportedMediaType)
}
func (m *oci1Index) GetManifestList() ([]types.Descriptor, error) {
	return ociDescListToDescList(m.Manifests), nil
}

func (m *oci1Manifest) GetLayers() ([]types.Descriptor, error) {
	return ociDescListToDescList(m.Layers), nil
}
func (m *oci1Index) GetLayers() ([]types.Descriptor, error) {
	return []types.Descriptor{}, fmt.Errorf("layers are not available for media type %s: %w", m.desc.MediaType, types.ErrUnsupportedMediaType)
}

func (m *oci1Manifest) GetOrig() interface{} {
	return m.Manifest
}
func (m *oci1Index) GetOrig() interface{} {
	return m.Index
}

func (m *oci1Manifest) GetPlatformDesc(p *platform.Platform) (*types.Descriptor, error) {
	return nil, fmt.Errorf("platform lookup not available for media type %s: %w", m.desc.MediaType, types.ErrUnsupportedMediaType)
}
func (m *oci1Index) GetPlatformDesc(p *platform.Platform) (*types.Descriptor, error) {
	dl, err := m.GetManifestList()
	if err != nil {
		return nil, err
	}
	return getPlatformDesc(p, dl)
}

func (m *oci1Manifest) GetPlatformList() ([]*platform.Platform, error) {
	return nil, fmt.Errorf("platform list not available for media type %s: %w", m.desc.MediaType, types.ErrUnsupportedMediaType)
}
func (m *oci1Index) GetPlatformList() ([]*platform.Platform, error) {
	dl, err := m.GetManifestList()
	if err != nil {
		return nil, err
	}
	return getPlatformList(dl)
}

func (m *oci1Manifest) MarshalJSON() ([]byte, error) {
	if !m.manifSet {
		return []byte{}, fmt.Errorf("manifest unavailable, perform a manifest get first: %w", types.ErrUnavailable)
	}
	if len(m.rawBody) > 0 {
		return m.rawBody, nil
	}
	return json.Marshal(m.Manifest)
}
func (m *oci1Index) MarshalJSON() ([]byte, error) {
	if !m.manifSet {
		return []byte{}, fmt.Errorf("manifest unavailable, perform a manifest get first: %w", types.ErrUnavailable)
	}
	if len(m.rawBody) > 0 {
		return m.rawBody, nil
	}
	return json.Marshal(m.Index)
}

func (m *oci1Manifest) MarshalPretty() ([]byte, error) {
	if m == nil {
		return []byte{}, nil
	}
	buf := &bytes.Buffer{}
	tw := tabwriter.NewWriter(buf, 0, 0, 1, ' ', 0)
	if m.r.Reference != "" {
		fmt.Fprintf(tw, "Name:\t%s\n", m.r.Reference)
	}
	fmt.Fprintf(tw, "MediaType:\t%s\n", m.desc.MediaType)
	fmt.Fprintf(tw, "Digest:\t%s\n", m.desc.Digest.String())
	writeAnnotations(tw, m.Annotations)
	var total int64
	for _, d := range m.Layers {
		total += d.Size
	}
	fmt.Fprintf(tw, "Total Size:\t%s\n", units.HumanSize(float64(total)))
	fmt.Fprintf(tw, "\t\n")
	fmt.Fprintf(tw, "Config:\t\n")
	if err := ociDescToDesc(m.Config).MarshalPrettyTW(tw, "  "); err != nil {
		return []byte{}, err
	}
	fmt.Fprintf(tw, "\t\n")
	fmt.Fprintf(tw, "Layers:\t\n")
	for _, d := range m.Layers {
		fmt.Fprintf(tw, "\t\n")
		if err := ociDescToDesc(d).MarshalPrettyTW(tw, "  "); err != nil {
			return []byte{}, err
		}
	}
	tw.Flush()
	return buf.Bytes(), nil
}
func (m *oci1Index) MarshalPretty() ([]byte, error) {
	if m == nil {
		return []byte{}, nil
	}
	buf := &bytes.Buffer{}
	tw := tabwriter.NewWriter(buf, 0, 0, 1, ' ', 0)
	if m.r.Reference != "" {
		fmt.Fprintf(tw, "Name:\t%s\n", m.r.Reference)
	}
	fmt.Fprintf(tw, "MediaType:\t%s\n", m.desc.MediaType)
	fmt.Fprintf(tw, "Digest:\t%s\n", m.desc.Digest.String())
	writeAnnotations(tw, m.Annotations)
	fmt.Fprintf(tw, "\t\n")
	fmt.Fprintf(tw, "Manifests:\t\n")
	for _, d := range m.Manifests {
		fmt.Fprintf(tw, "\t\n")
		dRef := m.r
		if dRef.Reference != "" {
			dRef.Digest = d.Digest.String()
			fmt.Fprintf(tw, "  Name:\t%s\n", dRef.CommonName())
		}
		if err := ociDescToDesc(d).MarshalPrettyTW(tw, "  "); err != nil {
			return []byte{}, err
		}
	}
	tw.Flush()
	return buf.Bytes(), nil
}

func writeAnnotations(tw *tabwriter.Writer, annot map[string]string) {
	if len(annot) == 0 {
		return
	}
	fmt.Fprintf(tw, "Annotations:\t\n")
	keys := make([]string, 0, len(annot))
	for k := range annot {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(tw, "  %s:\t%s\n", k, annot[k])
	}
}

func (m *oci1Manifest) SetAnnotation(key, val string) error {
	if !m.manifSet {
		return fmt.Errorf("manifest is not set")
	}
	if m.Annotations == nil {
		m.Annotations = map[string]string{}
	}
	m.Annotations[key] = val
	return m.updateDesc()
}
func (m *oci1Index) SetAnnotation(key, val string) error {
	if !m.manifSet {
		return fmt.Errorf("manifest is not set")
	}
	if m.Annotations == nil {
		m.Annotations = map[string]string{}
	}
	m.Annotations[key] = val
	return m.updateDesc()
}

func (m *oci1Manifest) SetOrig(origIn interface{}) error {
	orig, ok := origIn.(ociv1.Manifest)
	if !ok {
		return types.ErrUnsupportedMediaType
	}
	if orig.MediaType != types.MediaTypeOCI1Manifest {
		orig.MediaType = types.MediaTypeOCI1Manifest
	}
	m.manifSet = true
	m.Manifest = orig
	return m.updateDesc()
}

func (m *oci1Index) SetOrig(origIn interface{}) error {
	orig, ok := origIn.(ociv1.Index)
	if !ok {
		return types.ErrUnsupportedMediaType
	}
	if orig.MediaType != types.MediaTypeOCI1ManifestList {
		orig.MediaType = types.MediaTypeOCI1ManifestList
	}
	m.manifSet = true
	m.Index = orig
	return m.updateDesc()
}

func (m *oci1Manifest) updateDesc() error {
	mj, err := json.Marshal(m.Manifest)
	if err != nil {
		return err
	}
	m.rawBody = mj
	m.desc = types.Descriptor{
		MediaType: types.MediaTypeOCI1Manifest,
		Digest:    digest.FromBytes(mj),
		Size:      int64(len(mj)),
	}
	return nil
}
func (m *oci1Index) updateDesc() error {
	mj, err := json.Marshal(m.Index)
	if err != nil {
		return err
	}
	m.rawBody = mj
	m.desc = types.Descriptor{
		MediaType: types.MediaTypeOCI1ManifestList,
		Digest:    digest.FromBytes(mj),
		Size:      int64(len(mj)),
	}
	return nil
}

// ociDescToDesc converts the upstream image-spec descriptor into this
// module's Descriptor, which carries the platform type used throughout.
func ociDescToDesc(d ociv1.Descriptor) types.Descriptor {
	td := types.Descriptor{
		MediaType:   d.MediaType,
		Size:        d.Size,
		Digest:      d.Digest,
		URLs:        d.URLs,
		Annotations: d.Annotations,
		Data:        d.Data,
	}
	if d.Platform != nil {
		td.Platform = &platform.Platform{
			OS:           d.Platform.OS,
			Architecture: d.Platform.Architecture,
			Variant:      d.Platform.Variant,
			OSVersion:    d.Platform.OSVersion,
			OSFeatures:   d.Platform.OSFeatures,
		}
	}
	return td
}

func ociDescListToDescList(dl []ociv1.Descriptor) []types.Descriptor {
	ret := make([]types.Descriptor, 0, len(dl))
	for _, d := range dl {
		ret = append(ret, ociDescToDesc(d))
	}
	return ret
}
