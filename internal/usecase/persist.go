package usecase

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"mindkb/internal/adapter/metastore"
	"mindkb/internal/adapter/vectorindex"
	"mindkb/internal/domain"
)

// rename is os.Rename; tests replace it to fail a chosen install step.
var rename = os.Rename

// commit persists kb to indexPath and metadataPath. Both files are written to
// temporaries next to their targets, fsynced, read back and checked, and only
// then renamed into place. The previous metadata file is kept as a backup
// until the index is installed and put back if that fails, so an error at
// any point leaves the previous pair loadable. Both files carry the build
// id, so a crash between the two renames is detected as a mismatched pair
// on the next load.
func commit(kb *KnowledgeBase, indexPath, metadataPath string) (err error) {
	for _, p := range []string{indexPath, metadataPath} {
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			return fmt.Errorf("create directory for %s: %w", p, err)
		}
	}

	suffix := ".tmp-" + kb.BuildID.String()
	tmpIndex := indexPath + suffix
	tmpMeta := metadataPath + suffix
	defer func() {
		if err != nil {
			os.Remove(tmpIndex)
			os.Remove(tmpMeta)
		}
	}()

	if err := kb.index.Save(tmpIndex, kb.BuildID); err != nil {
		return err
	}
	if err := kb.meta.Save(tmpMeta, kb.BuildID); err != nil {
		return err
	}

	if err := checkWritten(kb, tmpIndex, tmpMeta); err != nil {
		return err
	}

	backup := metadataPath + ".bak-" + kb.BuildID.String()
	defer os.Remove(backup)
	hadPrevious, err := backupFile(metadataPath, backup)
	if err != nil {
		return fmt.Errorf("back up metadata file: %w", err)
	}

	if err := rename(tmpMeta, metadataPath); err != nil {
		return fmt.Errorf("install metadata file: %w", err)
	}
	if err := rename(tmpIndex, indexPath); err != nil {
		if hadPrevious {
			if rerr := rename(backup, metadataPath); rerr != nil {
				return fmt.Errorf("install index file: %w (restoring metadata: %v)", err, rerr)
			}
		} else {
			os.Remove(metadataPath)
		}
		return fmt.Errorf("install index file: %w", err)
	}

	syncDir(filepath.Dir(indexPath))
	if filepath.Dir(metadataPath) != filepath.Dir(indexPath) {
		syncDir(filepath.Dir(metadataPath))
	}
	return nil
}

// backupFile hard-links src to dst, copying when links are not supported.
// It reports false if src does not exist.
func backupFile(src, dst string) (bool, error) {
	os.Remove(dst)
	err := os.Link(src, dst)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}

	in, err := os.Open(src)
	if err != nil {
		return false, err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return false, err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return false, err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return false, err
	}
	return true, out.Close()
}

// checkWritten reloads freshly written files and confirms they describe kb.
func checkWritten(kb *KnowledgeBase, indexPath, metadataPath string) error {
	index, indexID, err := vectorindex.Load(indexPath)
	if err != nil {
		return fmt.Errorf("verify written index: %w", err)
	}
	meta, metaID, err := metastore.Load(metadataPath)
	if err != nil {
		return fmt.Errorf("verify written metadata: %w", err)
	}

	switch {
	case indexID != kb.BuildID || metaID != kb.BuildID:
		return fmt.Errorf("%w: written build ids %s/%s, want %s", domain.ErrIndexCorruption, indexID, metaID, kb.BuildID)
	case index.Size() != meta.Len():
		return fmt.Errorf("%w: written index has %d rows, metadata %d", domain.ErrIndexCorruption, index.Size(), meta.Len())
	case index.Size() != kb.Size() || index.Dimension() != kb.Dimension():
		return fmt.Errorf("%w: written index is %dx%d, want %dx%d", domain.ErrIndexCorruption,
			index.Size(), index.Dimension(), kb.Size(), kb.Dimension())
	}
	return nil
}

// syncDir makes renames in dir durable where the platform supports it.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	defer d.Close()
	_ = d.Sync()
}
