package e2e

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"go/parser"
	"go/token"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cli "github.com/mark3labs/awsgen/internal/cli"
)

// storageAPI exercises every shape kind, locations, encodings, a recursive
// structure and errors.
const storageAPI = `{
  "version": "2.0",
  "metadata": {
    "apiVersion": "2006-03-01",
    "endpointPrefix": "s3",
    "protocol": "rest-xml",
    "serviceFullName": "Amazon Simple Storage Service",
    "serviceId": "S3",
    "signatureVersion": "s3"
  },
  "operations": {
    "PutObject": {
      "name": "PutObject",
      "http": {"method": "PUT", "requestUri": "/{Bucket}/{Key+}"},
      "input": {"shape": "PutObjectRequest"},
      "output": {"shape": "PutObjectOutput"},
      "errors": [{"shape": "NoSuchBucket"}]
    },
    "ListParts": {
      "http": {"method": "GET", "requestUri": "/{Bucket}?parts"},
      "input": {"shape": "ListPartsRequest"},
      "output": {"shape": "ListPartsOutput"}
    },
    "DeleteBucket": {
      "http": {"method": "DELETE", "requestUri": "/{Bucket}"},
      "input": {"shape": "DeleteBucketRequest"}
    },
    "Ping": {"http": {"method": "HEAD", "requestUri": "/"}}
  },
  "shapes": {
    "PutObjectRequest": {
      "type": "structure",
      "required": ["Bucket", "Key"],
      "payload": "Body",
      "members": {
        "Bucket": {"shape": "BucketName", "location": "uri", "locationName": "Bucket"},
        "Key": {"shape": "ObjectKey", "location": "uri", "locationName": "Key"},
        "Body": {"shape": "Body", "streaming": true},
        "ContentLength": {"shape": "ContentLength", "location": "header", "locationName": "Content-Length"},
        "Metadata": {"shape": "Metadata", "location": "headers", "locationName": "x-amz-meta-"},
        "StorageClass": {"shape": "StorageClass", "location": "header", "locationName": "x-amz-storage-class"},
        "Expires": {"shape": "Expires", "location": "header", "locationName": "Expires"},
        "Type": {"shape": "ObjectKey"}
      }
    },
    "PutObjectOutput": {
      "type": "structure",
      "members": {
        "ETag": {"shape": "ETag", "location": "header", "locationName": "ETag"},
        "Ratio": {"shape": "Ratio"},
        "Score": {"shape": "Score"},
        "Valid": {"shape": "Valid"}
      }
    },
    "ListPartsRequest": {
      "type": "structure",
      "required": ["Bucket"],
      "members": {
        "Bucket": {"shape": "BucketName", "location": "uri", "locationName": "Bucket"},
        "MaxParts": {"shape": "MaxParts", "location": "querystring", "locationName": "max-parts"}
      }
    },
    "ListPartsOutput": {
      "type": "structure",
      "members": {
        "Parts": {"shape": "Parts", "locationName": "Part"},
        "Owner": {"shape": "Grantee"}
      }
    },
    "DeleteBucketRequest": {
      "type": "structure",
      "required": ["Bucket"],
      "members": {"Bucket": {"shape": "BucketName", "location": "uri", "locationName": "Bucket"}}
    },
    "Grantee": {
      "type": "structure",
      "members": {
        "ID": {"shape": "ObjectKey"},
        "Delegates": {"shape": "GranteeList"}
      }
    },
    "GranteeList": {"type": "list", "member": {"shape": "Grantee", "locationName": "Grantee"}},
    "Part": {"type": "structure", "members": {"PartNumber": {"shape": "MaxParts"}, "Size": {"shape": "ContentLength"}}},
    "Parts": {"type": "list", "member": {"shape": "Part"}, "flattened": true},
    "Metadata": {"type": "map", "key": {"shape": "MetadataKey"}, "value": {"shape": "MetadataValue"}},
    "NoSuchBucket": {"type": "structure", "members": {}, "exception": true},
    "StorageClass": {"type": "string", "enum": ["STANDARD", "REDUCED_REDUNDANCY", "GLACIER_IR", "1"]},
    "BucketName": {"type": "string"},
    "ObjectKey": {"type": "string", "min": 1},
    "ETag": {"type": "string"},
    "MetadataKey": {"type": "string"},
    "MetadataValue": {"type": "string"},
    "Body": {"type": "blob", "streaming": true},
    "ContentLength": {"type": "long"},
    "MaxParts": {"type": "integer"},
    "Expires": {"type": "timestamp"},
    "Ratio": {"type": "float"},
    "Score": {"type": "double"},
    "Valid": {"type": "boolean"}
  }
}`

func writeModels(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	svc := filepath.Join(dir, "s3", "2006-03-01")
	require.NoError(t, os.MkdirAll(svc, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(svc, "api-2.json"), []byte(storageAPI), 0o600))
	return dir
}

func runCLI(t *testing.T, args ...string) {
	t.Helper()
	root := cli.NewRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	require.NoError(t, root.Execute(), "cli execute %v", args)
}

func digestDir(t *testing.T, dir string) (files []string, sum string) {
	t.Helper()
	h := sha256.New()
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, rerr := filepath.Rel(dir, path)
		if rerr != nil {
			return rerr
		}
		rel = filepath.ToSlash(rel)
		files = append(files, rel)
		// hash path + contents to be robust
		_, _ = h.Write([]byte(rel))
		b, rerr := os.ReadFile(path)
		if rerr != nil {
			return rerr
		}
		_, _ = h.Write(b)
		return nil
	})
	require.NoError(t, err, "walk %s", dir)
	sort.Strings(files)
	return files, hex.EncodeToString(h.Sum(nil))
}

func TestE2E_Generate_Deterministic(t *testing.T) {
	t.Parallel()
	models := writeModels(t)
	dir1 := t.TempDir()
	dir2 := t.TempDir()

	runCLI(t, "generate", "--input", models, "--out", dir1, "--force")
	runCLI(t, "generate", "--input", models, "--out", dir2, "--force", "--workers", "1")

	files1, sum1 := digestDir(t, dir1)
	files2, sum2 := digestDir(t, dir2)
	assert.Equal(t, files1, files2)
	assert.Equal(t, sum1, sum2, "generated outputs differ between runs")
	assert.Equal(t, []string{"s3/api.go", "s3/errors.go", "s3/shapes.go"}, files1)
}

func TestE2E_Generate_ValidGo(t *testing.T) {
	t.Parallel()
	models := writeModels(t)
	out := t.TempDir()
	runCLI(t, "generate", models, "--out", out)

	fset := token.NewFileSet()
	pkgs, err := parser.ParseDir(fset, filepath.Join(out, "s3"), nil, parser.ParseComments)
	require.NoError(t, err)
	require.Contains(t, pkgs, "s3")

	shapes, err := os.ReadFile(filepath.Join(out, "s3", "shapes.go"))
	require.NoError(t, err)
	src := string(shapes)
	// Grantee holds a list of itself and is therefore a pointer.
	assert.Contains(t, src, "[]*Grantee")
	assert.Contains(t, src, "*Grantee")
	assert.Contains(t, src, `awsrt.Header("x-amz-meta-")`)
	assert.Contains(t, src, `awsrt.FlatList()`)
	assert.Contains(t, src, `Streaming: true`)
	assert.Contains(t, src, "time.Time")
	assert.Contains(t, src, `func (*PutObjectRequest) PayloadPath() string { return "Body" }`)

	api, err := os.ReadFile(filepath.Join(out, "s3", "api.go"))
	require.NoError(t, err)
	assert.Contains(t, string(api), "awsrt.S3RequestMiddleware{}")
	assert.Contains(t, string(api), "func (c *S3) Ping(ctx context.Context) error")
	assert.Contains(t, string(api), "func (c *S3) DeleteBucket(ctx context.Context, input *DeleteBucketRequest) error")
}

// TestE2E_Generate_Builds compiles the generated package against this
// module's runtime. It needs a Go toolchain and module access.
func TestE2E_Generate_Builds(t *testing.T) {
	if os.Getenv("AWSGEN_E2E_ONLINE") != "1" || !haveCmd("go") {
		t.Skip("set AWSGEN_E2E_ONLINE=1 with a Go toolchain to build generated code")
	}
	t.Parallel()
	_, self, _, ok := runtime.Caller(0)
	require.True(t, ok)
	repoRoot := filepath.Clean(filepath.Join(filepath.Dir(self), "..", ".."))

	models := writeModels(t)
	out := t.TempDir()
	runCLI(t, "generate", models, "--out", out)

	gomod := strings.Join([]string{
		"module example.com/generated",
		"",
		"go 1.24.0",
		"",
		"require github.com/mark3labs/awsgen v0.0.0",
		"",
		"replace github.com/mark3labs/awsgen => " + filepath.ToSlash(repoRoot),
		"",
	}, "\n")
	require.NoError(t, os.WriteFile(filepath.Join(out, "go.mod"), []byte(gomod), 0o644))

	if err := runCmdWithTimeout(out, 2*time.Minute, "go", "mod", "tidy"); err != nil {
		t.Skipf("go mod tidy skipped (likely offline): %v", err)
	}
	require.NoError(t, runCmdWithTimeout(out, 2*time.Minute, "go", "build", "./..."))
}

func haveCmd(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

func runCmdWithTimeout(dir string, timeout time.Duration, name string, args ...string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return &execError{err: err, output: out.String()}
	}
	return nil
}

type execError struct {
	err    error
	output string
}

func (e *execError) Error() string { return e.err.Error() + ": " + e.output }
