// Package envfile generates and reads the application's .env file.
//
// The file is written once. An existing file is never modified, so the
// SECRET_KEY it carries stays stable across repeated setup runs.
package envfile

import (
	"bytes"
	"crypto/rand"
	"errors"
	"fmt"
	"io/fs"
	"math/big"
	"os"
	"slices"
	"strings"
	"text/template"

	"github.com/joho/godotenv"

	domerrors "github.com/garyellow/medshop-deploy/internal/errors"
	"github.com/garyellow/medshop-deploy/internal/fsutil"
	"github.com/garyellow/medshop-deploy/internal/sliceutil"
)

const (
	// Mode is the permission the file is created with.
	Mode fs.FileMode = 0o640

	// SecretKeyLength matches django.core.management.utils.get_random_secret_key.
	SecretKeyLength = 50

	secretKeyChars = "abcdefghijklmnopqrstuvwxyz0123456789!@#$%^&*(-_=+)"
)

// Keys read back by Validate.
const (
	KeySecretKey    = "SECRET_KEY"
	KeyDebug        = "DEBUG"
	KeyAllowedHosts = "ALLOWED_HOSTS"
)

// Params are rendered into a freshly created file.
type Params struct {
	PublicHost   string
	AllowedHosts []string // extra hosts, merged with PublicHost and loopback
}

// Result describes what Ensure did.
type Result struct {
	Path    string
	Created bool
}

var fileTemplate = template.Must(template.New("env").Parse(`# Generated by medshop-deploy. Edit by hand; setup never rewrites this file.
SECRET_KEY='{{ .SecretKey }}'
DEBUG=False
ALLOWED_HOSTS={{ .AllowedHosts }}

# PostgreSQL (optional). Uncomment to move off the bundled SQLite database.
# DB_ENGINE=django.db.backends.postgresql
# DB_NAME=medshop
# DB_USER=medshop
# DB_PASSWORD=change-me
# DB_HOST=localhost
# DB_PORT=5432
`))

// Ensure creates the file at path unless it already exists.
func Ensure(path string, p Params, owner fsutil.Owner) (Result, error) {
	res := Result{Path: path}

	exists, err := fsutil.Exists(path)
	if err != nil {
		return res, fmt.Errorf("stat %s: %w", path, err)
	}
	if exists {
		return res, nil
	}

	secret, err := GenerateSecretKey()
	if err != nil {
		return res, err
	}
	data, err := Render(secret, p)
	if err != nil {
		return res, err
	}

	// O_EXCL keeps a concurrently created file intact.
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, Mode)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return res, nil
		}
		return res, fmt.Errorf("create %s: %w", path, err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return res, fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return res, fmt.Errorf("close %s: %w", path, err)
	}
	if err := Tighten(path, owner); err != nil {
		return res, err
	}

	res.Created = true
	return res, nil
}

// Tighten resets mode and ownership without touching content.
func Tighten(path string, owner fsutil.Owner) error {
	if err := os.Chmod(path, Mode); err != nil {
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := os.Lchown(path, owner.UID, owner.GID); err != nil {
		return fmt.Errorf("chown %s: %w", path, err)
	}
	return nil
}

// Render produces the file contents for secret and p.
func Render(secret string, p Params) ([]byte, error) {
	var buf bytes.Buffer
	err := fileTemplate.Execute(&buf, struct {
		SecretKey    string
		AllowedHosts string
	}{
		SecretKey:    secret,
		AllowedHosts: strings.Join(AllowedHosts(p), ","),
	})
	if err != nil {
		return nil, fmt.Errorf("render env file: %w", err)
	}
	return buf.Bytes(), nil
}

// AllowedHosts returns the public host, the extra hosts and loopback,
// de-duplicated, in that order.
func AllowedHosts(p Params) []string {
	hosts := make([]string, 0, len(p.AllowedHosts)+3)
	for _, h := range append([]string{p.PublicHost}, p.AllowedHosts...) {
		if h = strings.TrimSpace(h); h != "" {
			hosts = append(hosts, h)
		}
	}
	hosts = append(hosts, "localhost", "127.0.0.1")
	return sliceutil.Unique(hosts)
}

// GenerateSecretKey returns a random Django-compatible secret.
func GenerateSecretKey() (string, error) {
	var sb strings.Builder
	sb.Grow(SecretKeyLength)
	limit := big.NewInt(int64(len(secretKeyChars)))
	for range SecretKeyLength {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("generate secret key: %w", err)
		}
		sb.WriteByte(secretKeyChars[n.Int64()])
	}
	return sb.String(), nil
}

// Read parses the file at path.
func Read(path string) (map[string]string, error) {
	values, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return values, nil
}

// Environ returns values as KEY=VALUE pairs, sorted by key.
func Environ(values map[string]string) []string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	env := make([]string, 0, len(keys))
	for _, k := range keys {
		env = append(env, k+"="+values[k])
	}
	return env
}

// Validate checks the values a production deployment depends on.
func Validate(values map[string]string, publicHost string) error {
	var errs []error

	if strings.TrimSpace(values[KeySecretKey]) == "" {
		errs = append(errs, fmt.Errorf("%s is empty", KeySecretKey))
	}
	if debug := strings.ToLower(strings.TrimSpace(values[KeyDebug])); debug != "false" && debug != "0" {
		errs = append(errs, fmt.Errorf("%s must be False, got %q", KeyDebug, values[KeyDebug]))
	}
	if publicHost != "" {
		if !slices.Contains(sliceutil.Fields(values[KeyAllowedHosts], ","), publicHost) {
			errs = append(errs, fmt.Errorf("%s does not include %s", KeyAllowedHosts, publicHost))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", domerrors.ErrEnvFileInvalid, errors.Join(errs...))
	}
	return nil
}
