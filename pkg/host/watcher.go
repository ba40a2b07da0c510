package host

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// archiveExtensions are the upload formats recognized by the watcher.
var archiveExtensions = []string{".zip", ".tar.gz", ".tgz", ".tar"}

// Upload describes one archive that appeared in the watched upload directory.
type Upload struct {
	// Path is the absolute path of the archive.
	Path string

	// Name is the archive file name without its extension, used as the
	// default project name.
	Name string
}

// UploadWatcher watches a directory for newly uploaded project archives.
// The wizard consumes its channel to auto-advance past the upload step.
type UploadWatcher struct {
	watcher *fsnotify.Watcher
	uploads chan Upload
	once    sync.Once
}

// NewUploadWatcher starts watching dir for project archives.
func NewUploadWatcher(dir string) (*UploadWatcher, error) {
	if !DirExists(dir) {
		return nil, fmt.Errorf("upload directory does not exist: %s", dir)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	if err := fw.Add(dir); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	w := &UploadWatcher{
		watcher: fw,
		uploads: make(chan Upload, 16),
	}

	go w.loop()
	return w, nil
}

// Uploads returns the channel of detected archives. The channel is closed
// when the watcher is closed.
func (w *UploadWatcher) Uploads() <-chan Upload {
	return w.uploads
}

// Close stops the watcher. It is safe to call more than once.
func (w *UploadWatcher) Close() error {
	var err error
	w.once.Do(func() {
		err = w.watcher.Close()
	})
	return err
}

// loop translates filesystem events into uploads until the watcher closes.
func (w *UploadWatcher) loop() {
	defer close(w.uploads)

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			name, ok := archiveName(event.Name)
			if !ok {
				continue
			}
			select {
			case w.uploads <- Upload{Path: event.Name, Name: name}:
			default:
				// Drop when the consumer lags; the next event re-triggers.
			}

		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

// archiveName returns the project name for a recognized archive path.
func archiveName(path string) (string, bool) {
	base := filepath.Base(path)
	lower := strings.ToLower(base)
	for _, ext := range archiveExtensions {
		if strings.HasSuffix(lower, ext) {
			return base[:len(base)-len(ext)], true
		}
	}
	return "", false
}
