package fetcher

import (
	"context"
	"io"
	"net"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/tracewell-health/ecg-cli/internal/imaging"
)

// FTPOptions configures the FTP inbox.
type FTPOptions struct {
	Timeout     time.Duration
	DownloadDir string
	User        string
	Password    string
}

// FTPInbox retrieves scan images from an FTP drop directory.
type FTPInbox struct {
	host string
	dir  string
	opts FTPOptions
}

// NewFTPInbox creates an inbox over an ftp:// URL pointing at a directory.
func NewFTPInbox(ftpURL string, opts FTPOptions) (*FTPInbox, error) {
	host, dir, err := parseFTPURL(ftpURL)
	if err != nil {
		return nil, err
	}
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.DownloadDir == "" {
		opts.DownloadDir = os.TempDir()
	}
	if opts.User == "" {
		opts.User = "anonymous"
		opts.Password = "anonymous@"
	}
	return &FTPInbox{host: host, dir: dir, opts: opts}, nil
}

// parseFTPURL extracts host (with port) and path from an FTP URL.
func parseFTPURL(rawURL string) (host string, dir string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", eris.Wrap(err, "fetcher: parse ftp url")
	}
	if u.Scheme != "ftp" {
		return "", "", eris.Errorf("fetcher: expected ftp scheme, got %q", u.Scheme)
	}

	host = u.Host
	if _, _, splitErr := net.SplitHostPort(host); splitErr != nil {
		host = net.JoinHostPort(host, "21")
	}

	dir = u.Path
	if dir == "" {
		dir = "/"
	}

	return host, dir, nil
}

func (f *FTPInbox) connect(ctx context.Context) (*ftp.ServerConn, error) {
	zap.L().Debug("ftp: connecting", zap.String("host", f.host), zap.String("dir", f.dir))

	conn, err := ftp.Dial(f.host, ftp.DialWithTimeout(f.opts.Timeout), ftp.DialWithContext(ctx))
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: ftp dial")
	}

	if err := conn.Login(f.opts.User, f.opts.Password); err != nil {
		conn.Quit() //nolint:errcheck
		return nil, eris.Wrap(err, "fetcher: ftp login")
	}

	return conn, nil
}

// List returns the supported scan images in the remote directory, sorted by name.
func (f *FTPInbox) List(ctx context.Context) ([]Entry, error) {
	conn, err := f.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Quit() //nolint:errcheck

	items, err := conn.List(f.dir)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: ftp list %s", f.dir)
	}

	var entries []Entry
	for _, item := range items {
		if item.Type != ftp.EntryTypeFile || !imaging.IsSupported(item.Name) {
			continue
		}
		entries = append(entries, Entry{Name: item.Name, SizeBytes: int64(item.Size)})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// Fetch downloads a remote scan into the download directory and returns the
// local path.
func (f *FTPInbox) Fetch(ctx context.Context, name string) (string, error) {
	conn, err := f.connect(ctx)
	if err != nil {
		return "", err
	}
	defer conn.Quit() //nolint:errcheck

	remote := path.Join(f.dir, path.Base(name))
	resp, err := conn.Retr(remote)
	if err != nil {
		return "", eris.Wrapf(err, "fetcher: ftp retrieve %s", remote)
	}
	defer resp.Close() //nolint:errcheck

	if err := os.MkdirAll(f.opts.DownloadDir, 0o755); err != nil {
		return "", eris.Wrap(err, "fetcher: create download dir")
	}

	local := filepath.Join(f.opts.DownloadDir, path.Base(name))
	file, err := os.Create(local)
	if err != nil {
		return "", eris.Wrapf(err, "fetcher: create %s", local)
	}
	defer file.Close() //nolint:errcheck

	n, err := io.Copy(file, resp)
	if err != nil {
		return "", eris.Wrapf(err, "fetcher: write %s", local)
	}

	zap.L().Debug("ftp: downloaded scan",
		zap.String("remote", remote),
		zap.String("local", local),
		zap.Int64("bytes", n),
	)
	return local, nil
}
