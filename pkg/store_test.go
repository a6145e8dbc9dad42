package buildstamp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestStoreLoadMissingFile(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "VERSION"))
	r, err := store.Load(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, Record{}, r)
	assert.Equal(t, "0.0.0.0", r.Text())
}

func TestStoreLoadEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "VERSION")
	require.NoError(t, os.WriteFile(path, []byte("\n"), 0644))

	r, err := NewStore(path).Load(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, Record{}, r)
}

func TestStoreLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "VERSION")
	require.NoError(t, os.WriteFile(path, []byte("one.two.three\n"), 0644))

	_, err := NewStore(path).Load(context.Background(), false)
	var malformed *MalformedVersionError
	require.ErrorAs(t, err, &malformed)
}

func TestStoreWriteFileTargets(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(filepath.Join(dir, "VERSION"))
	r := Record{Major: 1, Minor: 2, Patch: 4, Build: 4}
	ctx := context.Background()

	t.Run("text", func(t *testing.T) {
		path := filepath.Join(dir, "out", "version.txt")
		require.NoError(t, store.Write(ctx, Target{Type: TargetText, File: path}, r))
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "1.2.4.4\n", string(data))
	})

	t.Run("json", func(t *testing.T) {
		path := filepath.Join(dir, "out", "version.json")
		require.NoError(t, store.Write(ctx, Target{Type: TargetJSON, File: path}, r))
		data, err := os.ReadFile(path)
		require.NoError(t, err)

		var doc map[string]any
		require.NoError(t, json.Unmarshal(data, &doc))
		assert.Equal(t, map[string]any{
			"major": float64(1),
			"minor": float64(2),
			"patch": float64(4),
			"build": float64(4),
			"text":  "1.2.4.4",
		}, doc)
	})

	t.Run("yaml", func(t *testing.T) {
		path := filepath.Join(dir, "out", "version.yaml")
		require.NoError(t, store.Write(ctx, Target{Type: TargetYAML, File: path}, r))
		data, err := os.ReadFile(path)
		require.NoError(t, err)

		var doc stampDocument
		require.NoError(t, yaml.Unmarshal(data, &doc))
		assert.Equal(t, newStampDocument(r), doc)
	})

	t.Run("module", func(t *testing.T) {
		path := filepath.Join(dir, "src", "version.ts")
		require.NoError(t, store.Write(ctx, Target{Type: TargetModule, File: path}, r))
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, `export const version = {
    major: 1,
    minor: 2,
    patch: 4,
    build: 4,
    text: '1.2.4.4'
};
`, string(data))
	})

	t.Run("go", func(t *testing.T) {
		pkgDir := filepath.Join(dir, "internal", "build")
		require.NoError(t, os.MkdirAll(pkgDir, 0755))
		require.NoError(t, os.WriteFile(filepath.Join(pkgDir, "build.go"), []byte("package build\n"), 0644))

		path := filepath.Join(pkgDir, "version.go")
		require.NoError(t, store.Write(ctx, Target{Type: TargetGo, File: path}, r))
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), "package build\n")
		assert.Contains(t, string(data), "Patch = 4")
		assert.Contains(t, string(data), `Version = "1.2.4.4"`)
	})
}

func TestGoPackageName(t *testing.T) {
	dir := t.TempDir()

	name, err := goPackageName(filepath.Join(dir, "missing", "version.go"))
	require.NoError(t, err)
	assert.Equal(t, "version", name)

	existing := filepath.Join(dir, "version.go")
	require.NoError(t, os.WriteFile(existing, []byte("// header\npackage stamp\n"), 0644))
	name, err = goPackageName(existing)
	require.NoError(t, err)
	assert.Equal(t, "stamp", name)

	other := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(other, "a_test.go"), []byte("package other_test\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(other, "main.go"), []byte("package main\n"), 0644))
	name, err = goPackageName(filepath.Join(other, "version.go"))
	require.NoError(t, err)
	assert.Equal(t, "main", name)
}

func TestStoreWritePackageManager(t *testing.T) {
	dir := t.TempDir()
	manifest := filepath.Join(dir, "package.json")
	require.NoError(t, os.WriteFile(manifest, []byte(`{
  "name": "app",
  "version": "1.2.3",
  "dependencies": {
    "left-pad": "1.0.0"
  }
}
`), 0644))

	store := NewStore(filepath.Join(dir, "VERSION"))
	target := Target{Type: TargetPackageManager, Dir: dir}
	require.NoError(t, store.Write(context.Background(), target, Record{Major: 1, Minor: 2, Patch: 4, Build: 9}))

	data, err := os.ReadFile(manifest)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"version": "1.2.4"`)
	assert.Contains(t, string(data), `"left-pad": "1.0.0"`)
	assert.Equal(t, manifest, target.Destination())
}

type recordingVersioner struct {
	calls []string
	err   error
}

func (v *recordingVersioner) SetPackageVersion(major, minor, patch uint64, dir string) error {
	v.calls = append(v.calls, Record{Major: major, Minor: minor, Patch: patch}.Release()+"@"+dir)
	return v.err
}

func TestStoreWritePackageManagerDelegates(t *testing.T) {
	versioner := &recordingVersioner{}
	store := NewStore("VERSION", WithPackageVersioner(versioner))

	require.NoError(t, store.Write(context.Background(), Target{Type: TargetPackageManager, Dir: "web"}, Record{3, 1, 4, 1}))
	require.NoError(t, store.Write(context.Background(), Target{Type: TargetPackageManager}, Record{3, 1, 5, 0}))
	assert.Equal(t, []string{"3.1.4@web", "3.1.5@."}, versioner.calls)

	versioner.err = errors.New("registry offline")
	err := store.Write(context.Background(), Target{Type: TargetPackageManager}, Record{})
	assert.EqualError(t, err, "registry offline")
}

type fakeObjectPutter struct {
	region string
	inputs []*s3.PutObjectInput
	bodies [][]byte
	err    error
}

func (f *fakeObjectPutter) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	body, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	f.inputs = append(f.inputs, params)
	f.bodies = append(f.bodies, body)
	if f.err != nil {
		return nil, f.err
	}
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeObjectPutter) factory(ctx context.Context, region string) (ObjectPutter, error) {
	f.region = region
	return f, nil
}

func TestStoreWriteS3(t *testing.T) {
	putter := &fakeObjectPutter{}
	store := NewStore("VERSION", WithObjectPutter(putter.factory))
	target := Target{Type: TargetS3, Bucket: "artifacts", Key: "app/version.json", Region: "eu-west-1"}

	require.NoError(t, store.Write(context.Background(), target, Record{1, 0, 2, 7}))
	require.Len(t, putter.inputs, 1)
	assert.Equal(t, "eu-west-1", putter.region)
	assert.Equal(t, "artifacts", aws.ToString(putter.inputs[0].Bucket))
	assert.Equal(t, "app/version.json", aws.ToString(putter.inputs[0].Key))
	assert.Equal(t, "application/json", aws.ToString(putter.inputs[0].ContentType))
	assert.JSONEq(t, `{"major":1,"minor":0,"patch":2,"build":7,"text":"1.0.2.7"}`, string(putter.bodies[0]))

	assert.Equal(t, "s3://artifacts/app/version.json", target.Destination())
	assert.Empty(t, target.LocalPath())

	putter.err = errors.New("access denied")
	err := store.Write(context.Background(), target, Record{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "s3://artifacts/app/version.json")
}

func TestStoreWriteUnknownType(t *testing.T) {
	err := NewStore("VERSION").Write(context.Background(), Target{Type: "xml", File: "v.xml"}, Record{})
	assert.EqualError(t, err, `unknown output type "xml"`)
}
