package asset

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// The Resource class wraps a streamable file or remote Resource. Resources
// whose path ends in .gz or .zst are transparently decompressed.
type Resource struct {
	io.Reader

	// Closers for the decompressor (if any) and the underlying stream.
	closers []func() error

	url *url.URL
}

// Returns the path to this resource.
func (r *Resource) Path() string {
	return r.url.String()
}

// Return the remote path to this resource. If this is a remote resource then
// this method returns the base path (without leading /) of the remote URL.
// Otherwise, this method returns the same value as Path().
func (r *Resource) RemotePath() string {
	if r.IsRemote() {
		return filepath.Base(r.url.Path)
	}
	return r.Path()
}

// Returns true if the Resource is streamed over http/https.
func (r *Resource) IsRemote() bool {
	return r.url.Scheme != ""
}

// Returns true if the resource stream is decompressed on the fly.
func (r *Resource) IsCompressed() bool {
	return compressionFor(r.url.Path) != ""
}

// Release the decompressor and the underlying stream.
func (r *Resource) Close() error {
	var firstErr error
	for _, closeFn := range r.closers {
		if err := closeFn(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	r.closers = nil
	return firstErr
}

// Create a new Resource data stream. If relTo is specified and pathToResource
// does not define a scheme, then the path to the new Resource will be generated
// by concatenating the base path of relTo and pathToResource.
//
// This function can handle http/https URLs by delegating to the net/http package.
// The caller must make sure to call Close on the returned resource to prevent mem leaks.
func NewResource(pathToResource string, relTo *Resource) (*Resource, error) {
	// Replace forward slashes with backslaces and try parsing as a URL
	url, err := url.Parse(strings.Replace(pathToResource, `\`, `/`, -1))
	if err != nil {
		return nil, err
	}

	// If this is a relative url, clone parent url and adjust its path
	if url.Scheme == "" && relTo != nil && !filepath.IsAbs(url.Path) {
		path := url.Path
		url, _ = url.Parse(relTo.url.String())
		prefix := url.Path
		if url.Scheme == "" {
			prefix, err = filepath.Abs(relTo.url.String())
			if err != nil {
				return nil, fmt.Errorf("resource: could not detect abs path for %s; %s", relTo.url.String(), err.Error())
			}
		}
		url.Path = filepath.Dir(prefix) + "/" + path
	}

	var reader io.ReadCloser
	switch url.Scheme {
	case "":
		reader, err = os.Open(filepath.Clean(url.Path))
		if err != nil {
			return nil, err
		}
	case "http", "https":
		resp, err := http.Get(url.String())
		if err != nil {
			return nil, fmt.Errorf("resource: could not fetch '%s': %s", url.String(), err)
		}
		if resp.StatusCode >= 400 {
			resp.Body.Close()
			return nil, fmt.Errorf("resource: could not fetch '%s': status %d", url.String(), resp.StatusCode)
		}
		reader = resp.Body
	default:
		return nil, fmt.Errorf("resource: unsupported scheme '%s'", url.Scheme)
	}

	res, err := wrapStream(url, reader)
	if err != nil {
		reader.Close()
		return nil, err
	}
	return res, nil
}

// Create a resource from a reader. The name determines whether the stream
// gets decompressed.
func NewResourceFromStream(name string, source io.Reader) (*Resource, error) {
	url, err := url.Parse(name)
	if err != nil {
		return nil, err
	}
	return wrapStream(url, io.NopCloser(source))
}

func compressionFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz":
		return "gzip"
	case ".zst":
		return "zstd"
	}
	return ""
}

func wrapStream(url *url.URL, stream io.ReadCloser) (*Resource, error) {
	res := &Resource{
		Reader:  stream,
		url:     url,
		closers: []func() error{stream.Close},
	}

	switch compressionFor(url.Path) {
	case "gzip":
		gzr, err := gzip.NewReader(stream)
		if err != nil {
			return nil, fmt.Errorf("resource: could not decompress '%s': %s", url.String(), err)
		}
		res.Reader = gzr
		res.closers = append([]func() error{gzr.Close}, res.closers...)
	case "zstd":
		zr, err := zstd.NewReader(stream)
		if err != nil {
			return nil, fmt.Errorf("resource: could not decompress '%s': %s", url.String(), err)
		}
		res.Reader = zr
		res.closers = append([]func() error{func() error { zr.Close(); return nil }}, res.closers...)
	}

	return res, nil
}
