package config

import (
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// Watch reloads the configuration whenever the file is written. A file that
// fails to load is reported and ignored; the previous configuration stays.
func (m *Manager) Watch() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.watcher != nil {
		return nil
	}

	// Watch the directory: editors replace files rather than write them.
	dir := filepath.Dir(m.configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return err
	}

	m.watcher = watcher
	m.done = make(chan struct{})
	go m.watch(watcher, m.done)
	return nil
}

func (m *Manager) watch(watcher *fsnotify.Watcher, done <-chan struct{}) {
	name := filepath.Base(m.configPath)

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				logrus.Debugf("Config: %s changed, reloading", m.configPath)
				if err := m.Load(); err != nil {
					logrus.Warnf("Config: reload failed, keeping previous settings: %v", err)
				}
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logrus.Warnf("Config: watcher error: %v", err)

		case <-done:
			return
		}
	}
}

// StopWatching stops the file watcher started by Watch.
func (m *Manager) StopWatching() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.watcher == nil {
		return nil
	}
	close(m.done)
	err := m.watcher.Close()
	m.watcher = nil
	return err
}
