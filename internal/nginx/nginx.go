// Package nginx renders the reverse proxy site and activates it.
//
// A site is never put live without "nginx -t" passing first: validation
// failure leaves the running configuration untouched.
package nginx

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"github.com/garyellow/medshop-deploy/internal/fsutil"
	"github.com/garyellow/medshop-deploy/internal/runner"
)

// SiteMode is the permission the site file is written with.
const SiteMode = 0o644

// Site holds the values rendered into the server block.
type Site struct {
	ServerNames []string
	MaxBodySize string
	StaticRoot  string // collectstatic output
	MediaRoot   string
	Upstream    string // host:port gunicorn listens on
	AccessLog   string
	ErrorLog    string
}

var siteTemplate = template.Must(template.New("site").Funcs(template.FuncMap{
	"join": strings.Join,
	"dir":  dirAlias,
}).Parse(`# Generated by medshop-deploy.
server {
    listen 80;
    server_name {{ join .ServerNames " " }};

    client_max_body_size {{ .MaxBodySize }};
{{- if .AccessLog }}
    access_log {{ .AccessLog }};
{{- end }}
{{- if .ErrorLog }}
    error_log {{ .ErrorLog }};
{{- end }}

    location = /favicon.ico { access_log off; log_not_found off; }

    location /static/ {
        alias {{ dir .StaticRoot }};
        expires 30d;
        add_header Cache-Control "public";
    }

    location /media/ {
        alias {{ dir .MediaRoot }};
    }

    location / {
        proxy_pass http://{{ .Upstream }};
        proxy_set_header Host $host;
        proxy_set_header X-Real-IP $remote_addr;
        proxy_set_header X-Forwarded-For $proxy_add_x_forwarded_for;
        proxy_set_header X-Forwarded-Proto $scheme;
        proxy_redirect off;
    }
}
`))

// dirAlias returns p with exactly one trailing slash, as alias requires
// inside a prefix location.
func dirAlias(p string) string {
	return strings.TrimRight(p, "/") + "/"
}

// Render produces the site definition.
func Render(s Site) ([]byte, error) {
	if len(s.ServerNames) == 0 {
		s.ServerNames = []string{"_"}
	}
	if s.MaxBodySize == "" {
		s.MaxBodySize = "20M"
	}
	var buf bytes.Buffer
	if err := siteTemplate.Execute(&buf, s); err != nil {
		return nil, fmt.Errorf("render nginx site: %w", err)
	}
	return buf.Bytes(), nil
}

// Proxy places a site under sites-available/sites-enabled and reloads nginx.
type Proxy struct {
	Runner         runner.Runner
	SitePath       string // sites-available/<name>
	EnabledPath    string // sites-enabled/<name>
	DefaultEnabled string // sites-enabled/default, removed when non-empty
	Timeout        time.Duration
}

// Install writes and links the site, then validates and reloads nginx.
// Reload only happens after validation passes.
func (p *Proxy) Install(ctx context.Context, s Site) error {
	data, err := Render(s)
	if err != nil {
		return err
	}
	if err := fsutil.WriteFileAtomic(p.SitePath, data, SiteMode); err != nil {
		return fmt.Errorf("write site: %w", err)
	}
	if err := p.link(); err != nil {
		return err
	}
	if p.DefaultEnabled != "" {
		if err := os.Remove(p.DefaultEnabled); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("disable default site: %w", err)
		}
	}
	return p.ValidateAndReload(ctx)
}

// ValidateAndReload runs "nginx -t" and, only if it passes, reloads nginx.
func (p *Proxy) ValidateAndReload(ctx context.Context) error {
	if err := p.Validate(ctx); err != nil {
		return fmt.Errorf("nginx configuration invalid, not reloading: %w", err)
	}
	return p.Runner.Run(ctx, runner.Command{
		Name:    "systemctl",
		Args:    []string{"reload", "nginx"},
		Timeout: p.Timeout,
	})
}

// Validate runs "nginx -t".
func (p *Proxy) Validate(ctx context.Context) error {
	return p.Runner.Run(ctx, runner.Command{
		Name:    "nginx",
		Args:    []string{"-t"},
		Timeout: p.Timeout,
	})
}

// link points EnabledPath at SitePath, replacing a stale link.
func (p *Proxy) link() error {
	if target, err := os.Readlink(p.EnabledPath); err == nil {
		if target == p.SitePath {
			return nil
		}
		if err := os.Remove(p.EnabledPath); err != nil {
			return fmt.Errorf("remove stale link: %w", err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		// A regular file where the link belongs is left for the operator.
		return fmt.Errorf("inspect %s: %w", p.EnabledPath, err)
	}
	if err := os.MkdirAll(filepath.Dir(p.EnabledPath), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(p.EnabledPath), err)
	}
	if err := os.Symlink(p.SitePath, p.EnabledPath); err != nil {
		return fmt.Errorf("link site: %w", err)
	}
	return nil
}

// SiteRoot returns the directory the site's /static/ location aliases.
func SiteRoot(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	inStatic := false
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		fields := strings.Fields(strings.TrimSuffix(strings.TrimSpace(sc.Text()), ";"))
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		switch {
		case fields[0] == "location":
			inStatic = len(fields) >= 2 && fields[1] == "/static/"
		case fields[0] == "}":
			inStatic = false
		case inStatic && fields[0] == "alias" && len(fields) == 2:
			return fields[1], nil
		}
	}
	if err := sc.Err(); err != nil {
		return "", err
	}
	return "", fmt.Errorf("%s: no alias in location /static/", path)
}
