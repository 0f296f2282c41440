package objectacl

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/go-cmp/cmp"
)

func TestKey(t *testing.T) {
	tests := []struct {
		path    string
		want    string
		wantErr bool
	}{
		{"icon.png", "circles/7/icon.png", false},
		{"avatars/12.jpg", "circles/7/avatars/12.jpg", false},
		{"", "", true},
		{"/etc/passwd", "", true},
		{"../8/icon.png", "", true},
		{"a/../../b", "", true},
		{"a//b", "", true},
		{"..", "", true},
		{`a\b`, "", true},
	}
	for _, tt := range tests {
		got, err := Key(7, tt.path)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidPath) {
				t.Errorf("Key(%q) err = %v, want ErrInvalidPath", tt.path, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("Key(%q) = %q, %v, want %q", tt.path, got, err, tt.want)
		}
	}
}

func TestMergeMetadataKeepsForeignKeys(t *testing.T) {
	at := time.Date(2024, 12, 2, 9, 0, 0, 0, time.UTC)
	got := mergeMetadata(map[string]string{
		"owner":                "upload-service",
		"Frisfocus-Visibility": "public",
	}, ACL{CircleID: 3, Visibility: Circle, UpdatedBy: 5, UpdatedAt: at})

	want := map[string]string{
		"owner":        "upload-service",
		metaVisibility: "circle",
		metaCircle:     "3",
		metaUpdatedBy:  "5",
		metaUpdatedAt:  "2024-12-02T09:00:00Z",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("metadata mismatch (-want +got):\n%s", diff)
	}
}

func TestFromMetadataDefaultsToPrivate(t *testing.T) {
	acl := fromMetadata("k", map[string]string{metaVisibility: "everyone"})
	if acl.Visibility != Private {
		t.Errorf("visibility = %q, want private", acl.Visibility)
	}
}

func TestMemory(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	if _, err := m.Get(ctx, "circles/1/icon.png"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("get missing: err = %v, want ErrNotFound", err)
	}
	if err := m.Set(ctx, "circles/1/icon.png", ACL{Visibility: Public}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("set missing: err = %v, want ErrNotFound", err)
	}

	m.Put("circles/1/icon.png")
	if err := m.Set(ctx, "circles/1/icon.png", ACL{CircleID: 1, Visibility: Public, UpdatedBy: 2}); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := m.Get(ctx, "circles/1/icon.png")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	want := &ACL{Key: "circles/1/icon.png", CircleID: 1, Visibility: Public, UpdatedBy: 2}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("acl mismatch (-want +got):\n%s", diff)
	}
}

// mockS3Client implements s3Client for testing.
type mockS3Client struct {
	objects map[string]map[string]string
	copies  []*s3.CopyObjectInput
}

func (m *mockS3Client) HeadObject(_ context.Context, input *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	md, ok := m.objects[*input.Key]
	if !ok {
		return nil, &types.NotFound{}
	}
	ct := "image/png"
	return &s3.HeadObjectOutput{Metadata: md, ContentType: &ct}, nil
}

func (m *mockS3Client) CopyObject(_ context.Context, input *s3.CopyObjectInput, _ ...func(*s3.Options)) (*s3.CopyObjectOutput, error) {
	m.copies = append(m.copies, input)
	m.objects[*input.Key] = input.Metadata
	return &s3.CopyObjectOutput{}, nil
}

func TestS3Store(t *testing.T) {
	ctx := context.Background()
	mock := &mockS3Client{objects: map[string]map[string]string{
		"circles/1/icon.png": {"uploader": "web"},
	}}
	s := &S3Store{client: mock, bucket: "frisfocus"}

	if _, err := s.Get(ctx, "circles/1/missing.png"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("get missing: err = %v, want ErrNotFound", err)
	}

	acl, err := s.Get(ctx, "circles/1/icon.png")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if acl.Visibility != Private {
		t.Errorf("initial visibility = %q, want private", acl.Visibility)
	}

	if err := s.Set(ctx, "circles/1/icon.png", ACL{CircleID: 1, Visibility: Public}); err != nil {
		t.Fatalf("set: %v", err)
	}
	if len(mock.copies) != 1 {
		t.Fatalf("copies = %d, want 1", len(mock.copies))
	}
	in := mock.copies[0]
	if in.ACL != types.ObjectCannedACLPublicRead {
		t.Errorf("canned acl = %q, want public-read", in.ACL)
	}
	if in.MetadataDirective != types.MetadataDirectiveReplace {
		t.Errorf("metadata directive = %q, want REPLACE", in.MetadataDirective)
	}
	if *in.CopySource != "frisfocus%2Fcircles%2F1%2Ficon.png" {
		t.Errorf("copy source = %q", *in.CopySource)
	}
	if in.Metadata["uploader"] != "web" {
		t.Error("existing metadata was dropped")
	}

	acl, err = s.Get(ctx, "circles/1/icon.png")
	if err != nil {
		t.Fatalf("get after set: %v", err)
	}
	if acl.Visibility != Public || acl.CircleID != 1 {
		t.Errorf("acl = %+v, want public in circle 1", acl)
	}
}

type fakeBucket struct {
	md     map[string]map[string]string
	public map[string]bool
}

func (f *fakeBucket) Metadata(_ context.Context, key string) (map[string]string, error) {
	md, ok := f.md[key]
	if !ok {
		return nil, ErrNotFound
	}
	return md, nil
}

func (f *fakeBucket) Update(_ context.Context, key string, md map[string]string, public bool) error {
	f.md[key] = md
	f.public[key] = public
	return nil
}

func TestGCSStore(t *testing.T) {
	ctx := context.Background()
	b := &fakeBucket{
		md:     map[string]map[string]string{"circles/2/avatar.jpg": nil},
		public: map[string]bool{},
	}
	s := &GCSStore{bucket: b}

	if err := s.Set(ctx, "circles/2/nope.jpg", ACL{Visibility: Circle}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("set missing: err = %v, want ErrNotFound", err)
	}

	if err := s.Set(ctx, "circles/2/avatar.jpg", ACL{CircleID: 2, Visibility: Public}); err != nil {
		t.Fatalf("set public: %v", err)
	}
	if !b.public["circles/2/avatar.jpg"] {
		t.Error("expected public grant")
	}

	if err := s.Set(ctx, "circles/2/avatar.jpg", ACL{CircleID: 2, Visibility: Circle}); err != nil {
		t.Fatalf("set circle: %v", err)
	}
	if b.public["circles/2/avatar.jpg"] {
		t.Error("expected public grant to be revoked")
	}
	acl, err := s.Get(ctx, "circles/2/avatar.jpg")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if acl.Visibility != Circle {
		t.Errorf("visibility = %q, want circle", acl.Visibility)
	}
	if err := s.Close(); err != nil {
		t.Errorf("close: %v", err)
	}
}
