package ingest

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"
)

// FTPSource mirrors snapshot files published by the scraper onto an FTP server.
type FTPSource struct {
	Addr     string // host:port
	User     string
	Password string
	Dir      string
	Timeout  time.Duration
}

func NewFTPSource(addr, user, password, dir string) *FTPSource {
	if user == "" {
		user = "anonymous"
		password = "anonymous"
	}
	return &FTPSource{
		Addr:     addr,
		User:     user,
		Password: password,
		Dir:      dir,
		Timeout:  30 * time.Second,
	}
}

// Mirror downloads snapshot files that are missing locally or whose size
// differs. It returns the local paths of the files downloaded.
func (s *FTPSource) Mirror(ctx context.Context, localDir string) ([]string, error) {
	conn, err := ftp.Dial(s.Addr, ftp.DialWithTimeout(s.Timeout), ftp.DialWithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("ftp dial: %w", err)
	}
	defer conn.Quit()

	if err := conn.Login(s.User, s.Password); err != nil {
		return nil, fmt.Errorf("ftp login: %w", err)
	}

	entries, err := conn.List(s.Dir)
	if err != nil {
		return nil, fmt.Errorf("ftp list %s: %w", s.Dir, err)
	}

	if err := os.MkdirAll(localDir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	var fetched []string
	for _, e := range entries {
		if ctx.Err() != nil {
			return fetched, ctx.Err()
		}
		if e.Type != ftp.EntryTypeFile {
			continue
		}
		local := filepath.Join(localDir, filepath.Base(e.Name))
		if !needsMirror(e.Name, e.Size, local) {
			continue
		}
		if err := s.download(conn, path.Join(s.Dir, e.Name), local); err != nil {
			log.Printf("ingest: ftp fetch %s: %v", e.Name, err)
			continue
		}
		fetched = append(fetched, local)
	}
	return fetched, nil
}

func (s *FTPSource) download(conn *ftp.ServerConn, remote, local string) error {
	resp, err := conn.Retr(remote)
	if err != nil {
		return fmt.Errorf("retr: %w", err)
	}
	defer resp.Close()

	// Write to a temp file so a partial download is never picked up by Discover.
	tmp, err := os.CreateTemp(filepath.Dir(local), ".fetch-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, resp); err != nil {
		tmp.Close()
		return fmt.Errorf("copy: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), local)
}

// needsMirror reports whether a remote snapshot file should be downloaded to local.
func needsMirror(name string, size uint64, local string) bool {
	switch strings.ToLower(path.Ext(name)) {
	case ".csv", ".xlsx":
	default:
		return false
	}
	info, err := os.Stat(local)
	if err != nil {
		return true
	}
	return uint64(info.Size()) != size
}
