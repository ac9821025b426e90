package dataset

import (
	"archive/tar"
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrPendingOverflow indicates the pairing map exceeded the configured bound.
var ErrPendingOverflow = errors.New("dataset: pending pair buffer exceeded")

const defaultPendingCap = 1024

// StreamShard streams paired examples from the tar shard at path. A sample
// is a "<key>.x" entry holding its features and a "<key>.cls" entry holding
// its label values; both are whitespace or comma separated floats.
func StreamShard(ctx context.Context, path string, pendingCap int) (<-chan Example, <-chan error) {
	if pendingCap <= 0 {
		pendingCap = defaultPendingCap
	}
	out := make(chan Example)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		f, err := os.Open(path)
		if err != nil {
			errCh <- fmt.Errorf("open shard: %w", err)
			return
		}
		defer f.Close()

		tr := tar.NewReader(bufio.NewReader(f))
		pending := make(map[string]*partial)

		for {
			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			default:
			}

			hdr, err := tr.Next()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				errCh <- fmt.Errorf("read tar: %w", err)
				return
			}
			if hdr.FileInfo().IsDir() {
				continue
			}
			name := filepath.Base(hdr.Name)
			ext := strings.ToLower(filepath.Ext(name))
			key := strings.TrimSuffix(name, filepath.Ext(name))

			var values []float64
			switch ext {
			case ".x", ".cls":
				payload, err := io.ReadAll(tr)
				if err != nil {
					errCh <- fmt.Errorf("read %s: %w", name, err)
					return
				}
				values, err = parseFloats(string(payload))
				if err != nil {
					errCh <- fmt.Errorf("parse %s: %w", name, err)
					return
				}
			default:
				continue
			}

			part := pending[key]
			if part == nil {
				part = &partial{}
				pending[key] = part
			}
			if ext == ".x" {
				part.features = values
			} else {
				part.label = values
			}

			if len(pending) > pendingCap {
				errCh <- ErrPendingOverflow
				return
			}

			if part.ready() {
				delete(pending, key)
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				case out <- Example{Key: key, Features: part.features, Label: part.label}:
				}
			}
		}

		if len(pending) > 0 {
			errCh <- fmt.Errorf("%d samples incomplete", len(pending))
		}
	}()

	return out, errCh
}

// LoadShards reads every shard in order into memory.
func LoadShards(ctx context.Context, paths []string) (*InMemory, error) {
	ds := NewInMemory(nil)
	for _, path := range paths {
		samples, errCh := StreamShard(ctx, path, defaultPendingCap)
		for sample := range samples {
			ds.Append(sample)
		}
		if err := <-errCh; err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}
	return ds, nil
}

type partial struct {
	features []float64
	label    []float64
}

func (p *partial) ready() bool {
	return len(p.features) > 0 && len(p.label) > 0
}

func parseFloats(s string) ([]float64, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
	out := make([]float64, 0, len(fields))
	for _, field := range fields {
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil, errors.New("no values")
	}
	return out, nil
}
