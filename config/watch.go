/*
Copyright (C) 2026  Ferrite Contributors

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU General Public License as published by
	the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU General Public License for more details.

	You should have received a copy of the GNU General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

package config

import (
	"log"

	"github.com/fsnotify/fsnotify"
)

// FileWatcher reloads a Store's ACL file reference whenever the
// watched path changes on disk, so CONFIG SET aclfile or an
// operator-edited ACL file takes effect without a restart. The reload
// function itself is supplied by the caller (package acl owns parsing
// decisions; config only notices the file moved).
type FileWatcher struct {
	w      *fsnotify.Watcher
	done   chan struct{}
	reload func(path string)
}

// WatchFile starts watching path, calling reload every time it is
// written or replaced (editors often rename-over-write, so both
// Write and Create/Rename events trigger a reload).
func WatchFile(path string, reload func(path string)) (*FileWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(path); err != nil {
		w.Close()
		return nil, err
	}
	fw := &FileWatcher{w: w, done: make(chan struct{}), reload: reload}
	go fw.run(path)
	return fw, nil
}

func (fw *FileWatcher) run(path string) {
	defer close(fw.done)
	for {
		select {
		case ev, ok := <-fw.w.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				fw.reload(path)
			}
		case err, ok := <-fw.w.Errors:
			if !ok {
				return
			}
			log.Printf("config: watcher error on %s: %v", path, err)
		}
	}
}

// Close stops the watcher.
func (fw *FileWatcher) Close() error {
	err := fw.w.Close()
	<-fw.done
	return err
}
