package fetcher

import (
	"context"
	"errors"
	"io"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// FTPOptions configures the FTP fetcher.
type FTPOptions struct {
	Timeout time.Duration
	// DisableEPSV falls back to PASV for servers behind NAT that mishandle
	// extended passive mode.
	DisableEPSV bool
}

// FTPFetcher retrieves files from FTP mirrors of the Census TIGER archive.
// Each download uses its own control connection.
type FTPFetcher struct {
	opts FTPOptions
}

// NewFTPFetcher returns an FTPFetcher with a 30s dial timeout by default.
func NewFTPFetcher(opts FTPOptions) *FTPFetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &FTPFetcher{opts: opts}
}

type ftpTarget struct {
	host     string
	path     string
	user     string
	password string
}

// parseFTPURL splits an ftp:// URL into dial address, remote path and login.
// The port defaults to 21 and the login to anonymous.
func parseFTPURL(rawURL string) (ftpTarget, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ftpTarget{}, eris.Wrap(err, "ftp: parse url")
	}
	if u.Scheme != "ftp" {
		return ftpTarget{}, eris.Errorf("ftp: scheme %q is not ftp", u.Scheme)
	}
	if strings.Trim(u.Path, "/") == "" {
		return ftpTarget{}, eris.Errorf("ftp: no file path in %s", u.Redacted())
	}

	t := ftpTarget{host: u.Host, path: u.Path, user: "anonymous", password: "anonymous@"}
	if u.Port() == "" {
		t.host = net.JoinHostPort(u.Hostname(), "21")
	}
	if u.User != nil {
		t.user = u.User.Username()
		if pw, ok := u.User.Password(); ok {
			t.password = pw
		}
	}
	return t, nil
}

// ftpBody streams a RETR response. Closing it ends the transfer and logs out.
type ftpBody struct {
	*ftp.Response
	conn *ftp.ServerConn
	stop func() bool
}

func (b *ftpBody) Close() error {
	b.stop()
	return errors.Join(
		eris.Wrap(b.Response.Close(), "ftp: close transfer"),
		eris.Wrap(b.conn.Quit(), "ftp: quit"),
	)
}

// Download logs in and starts retrieving the file. The caller must close the
// body. Cancelling ctx tears the connection down even mid-transfer.
func (f *FTPFetcher) Download(ctx context.Context, ftpURL string) (io.ReadCloser, error) {
	t, err := parseFTPURL(ftpURL)
	if err != nil {
		return nil, err
	}
	log := zap.L().With(zap.String("host", t.host), zap.String("path", t.path))

	opts := []ftp.DialOption{ftp.DialWithTimeout(f.opts.Timeout), ftp.DialWithContext(ctx)}
	if f.opts.DisableEPSV {
		opts = append(opts, ftp.DialWithDisabledEPSV(true))
	}
	conn, err := ftp.Dial(t.host, opts...)
	if err != nil {
		return nil, eris.Wrapf(err, "ftp: dial %s", t.host)
	}

	fail := func(err error, action string) (io.ReadCloser, error) {
		_ = conn.Quit()
		return nil, eris.Wrapf(err, "ftp: %s %s", action, t.path)
	}
	if err := conn.Login(t.user, t.password); err != nil {
		return fail(err, "login for")
	}
	if size, err := conn.FileSize(t.path); err == nil {
		log.Debug("ftp: retrieving", zap.Int64("bytes", size))
	}
	resp, err := conn.Retr(t.path)
	if err != nil {
		return fail(err, "retrieve")
	}

	stop := context.AfterFunc(ctx, func() {
		log.Warn("ftp: transfer cancelled")
		_ = conn.Quit()
	})
	return &ftpBody{Response: resp, conn: conn, stop: stop}, nil
}

// DownloadToFile retrieves the FTP URL into path.
func (f *FTPFetcher) DownloadToFile(ctx context.Context, ftpURL string, path string) (int64, error) {
	body, err := f.Download(ctx, ftpURL)
	if err != nil {
		return 0, err
	}
	return writeFile(body, path)
}
