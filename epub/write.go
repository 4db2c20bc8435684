package epub

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"

	fixzip "github.com/hidez8891/zip"
	"go.uber.org/multierr"
)

const deflate = zip.Deflate

// writeZip writes book as EPUB container: stored mimetype goes first, all
// other entries keep their order and compression method.
func (b *Book) writeZip(w io.Writer) (err error) {
	zw := zip.NewWriter(w)
	defer func() {
		err = multierr.Append(err, zw.Close())
	}()

	if err := writeMimetype(zw); err != nil {
		return fmt.Errorf("unable to write mimetype: %w", err)
	}
	for _, e := range b.entries {
		if e.Name == mimetypeName {
			continue
		}
		method := e.Method
		if method != zip.Store {
			method = deflate
		}
		fw, err := zw.CreateHeader(&zip.FileHeader{
			Name:     e.Name,
			Method:   method,
			Modified: e.Modified,
		})
		if err != nil {
			return fmt.Errorf("unable to add %s: %w", e.Name, err)
		}
		if _, err := fw.Write(e.Data); err != nil {
			return fmt.Errorf("unable to write %s: %w", e.Name, err)
		}
	}
	return nil
}

func writeMimetype(zw *zip.Writer) error {
	w, err := zw.CreateHeader(&zip.FileHeader{
		Name:   mimetypeName,
		Method: zip.Store,
	})
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, mimetypeContent)
	return err
}

// Write saves book to dst replacing existing file. When fixZip is set data
// descriptors are removed from the archive.
func (b *Book) Write(dst string, fixZip bool) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("unable to create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".*")
	if err != nil {
		return fmt.Errorf("unable to create output file: %w", err)
	}
	tmpName := tmp.Name()
	// clean temporary file
	defer os.Remove(tmpName)

	if err := b.writeZip(tmp); err != nil {
		return multierr.Append(err, tmp.Close())
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("unable to finalize output file: %w", err)
	}

	if fixZip {
		return copyZipWithoutDataDescriptors(tmpName, dst)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		return fmt.Errorf("unable to move output file in place: %w", err)
	}
	return nil
}

func copyZipWithoutDataDescriptors(from, to string) (err error) {
	out, err := os.Create(to)
	if err != nil {
		return fmt.Errorf("unable to create target file (%s): %w", to, err)
	}
	defer func() {
		err = multierr.Append(err, out.Close())
	}()

	r, err := fixzip.OpenReader(from)
	if err != nil {
		return fmt.Errorf("unable to read archive file (%s): %w", from, err)
	}
	defer r.Close()

	w := fixzip.NewWriter(out)
	defer func() {
		err = multierr.Append(err, w.Close())
	}()

	for _, file := range r.File {
		file.Flags &= ^fixzip.FlagDataDescriptor
		if err := w.CopyFile(file); err != nil {
			return fmt.Errorf("unable to write target file (%s): %w", to, err)
		}
	}
	return nil
}
