// Copyright 2015 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package osio

import (
	"context"
	"errors"
	"io"

	"cloud.google.com/go/storage"
)

// GCSStore is the production BackingStore, persisting backing objects in a
// real Cloud Storage bucket via cloud.google.com/go/storage, the storage
// client the teacher repo is built around.
type GCSStore struct {
	bucket *storage.BucketHandle
}

// NewGCSStore wraps an already-opened bucket handle.
func NewGCSStore(client *storage.Client, bucketName string) *GCSStore {
	return &GCSStore{bucket: client.Bucket(bucketName)}
}

func (g *GCSStore) ReadObject(ctx context.Context, name string, offset, length int64) ([]byte, error) {
	r, err := g.bucket.Object(name).NewRangeReader(ctx, offset, length)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, ErrObjectNotFound()
		}
		return nil, err
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return data, nil
}

// WriteObject writes a sub-range of a backing object. Cloud Storage has no
// native partial-object write, so a full object is composed from the
// unaffected prefix/suffix of the existing object (if any) and the new
// range, then replaced in one whole-object write — keeping the external
// contract (overwrite a byte range at an offset) while using only
// whole-object GCS operations underneath. The write carries no generation
// precondition.
func (g *GCSStore) WriteObject(ctx context.Context, name string, offset int64, data []byte) (int, error) {
	obj := g.bucket.Object(name)

	existing, err := g.ReadObject(ctx, name, 0, -1)
	if err != nil && !errors.Is(err, errObjectNotFound) {
		return 0, err
	}

	end := offset + int64(len(data))
	size := end
	if int64(len(existing)) > size {
		size = int64(len(existing))
	}
	merged := make([]byte, size)
	copy(merged, existing)
	copy(merged[offset:end], data)

	w := obj.NewWriter(ctx)
	if _, err := w.Write(merged); err != nil {
		w.Close()
		return 0, err
	}
	if err := w.Close(); err != nil {
		return 0, err
	}

	return len(data), nil
}

func (g *GCSStore) StatObject(ctx context.Context, name string) (bool, int64, error) {
	attrs, err := g.bucket.Object(name).Attrs(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return false, 0, nil
	}
	if err != nil {
		return false, 0, err
	}
	return true, attrs.Size, nil
}

func (g *GCSStore) RemoveObject(ctx context.Context, name string) error {
	err := g.bucket.Object(name).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return err
	}
	return nil
}
