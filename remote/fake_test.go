package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
)

// fakeDrive is an in-memory Drive.
type fakeDrive struct {
	mu      sync.Mutex
	files   []File
	content map[string][]byte
	nextID  int
	listErr error
	delErr  error
	failIDs map[string]bool
	queries []Query
	downs   []string
	creates []string
	updates []string
	deletes []string
}

func newFakeDrive(files ...File) *fakeDrive {
	d := &fakeDrive{content: map[string][]byte{}, failIDs: map[string]bool{}}
	for _, f := range files {
		d.files = append(d.files, f)
		d.content[f.ID] = []byte("content of " + f.Name)
	}
	return d
}

func (d *fakeDrive) matches(q Query, f File) bool {
	if !q.IncludeTrashed && f.Trashed {
		return false
	}
	if q.FolderID != "" {
		in := false
		for _, p := range f.Parents {
			if p == q.FolderID {
				in = true
			}
		}
		if !in {
			return false
		}
	}
	if q.Name != "" && f.Name != q.Name {
		return false
	}
	if len(q.MimeTypes) > 0 {
		ok := false
		for _, mt := range q.MimeTypes {
			if f.MimeType == mt {
				ok = true
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

func (d *fakeDrive) List(_ context.Context, q Query) ([]File, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.queries = append(d.queries, q)
	if d.listErr != nil {
		return nil, d.listErr
	}
	var out []File
	for _, f := range d.files {
		if d.matches(q, f) {
			out = append(out, f)
			if q.Limit > 0 && len(out) >= q.Limit {
				break
			}
		}
	}
	return out, nil
}

func (d *fakeDrive) Download(_ context.Context, fileID string, w io.Writer) error {
	d.mu.Lock()
	d.downs = append(d.downs, fileID)
	fail := d.failIDs[fileID]
	data := d.content[fileID]
	d.mu.Unlock()
	if fail {
		return errors.New("network down")
	}
	_, err := w.Write(data)
	return err
}

func (d *fakeDrive) Create(_ context.Context, folderID, name, mimeType string, content io.Reader) (File, error) {
	data, err := io.ReadAll(content)
	if err != nil {
		return File{}, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	f := File{ID: fmt.Sprintf("new-%d", d.nextID), Name: name, MimeType: mimeType, Parents: []string{folderID}}
	d.files = append(d.files, f)
	d.content[f.ID] = data
	d.creates = append(d.creates, name)
	return f, nil
}

func (d *fakeDrive) Update(_ context.Context, fileID, mimeType string, content io.Reader) (File, error) {
	data, err := io.ReadAll(content)
	if err != nil {
		return File{}, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, f := range d.files {
		if f.ID == fileID {
			d.files[i].MimeType = mimeType
			d.content[fileID] = data
			d.updates = append(d.updates, fileID)
			return d.files[i], nil
		}
	}
	return File{}, ErrNotFound
}

func (d *fakeDrive) Delete(_ context.Context, fileID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.delErr != nil {
		return d.delErr
	}
	for i, f := range d.files {
		if f.ID == fileID {
			d.files = append(d.files[:i], d.files[i+1:]...)
			d.deletes = append(d.deletes, fileID)
			return nil
		}
	}
	return ErrNotFound
}
