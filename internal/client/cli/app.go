// Package cli implements the plantctl commands.
package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/dmitrijs2005/plantgate/internal/client/api"
	"github.com/dmitrijs2005/plantgate/internal/client/config"
	"github.com/dmitrijs2005/plantgate/internal/client/state"
	"github.com/dmitrijs2005/plantgate/internal/common"
	"github.com/dmitrijs2005/plantgate/internal/cryptox"
)

var (
	ErrUsage       = errors.New("usage")
	ErrNotLoggedIn = errors.New("not logged in, run plantctl login")
)

type API interface {
	LoginPlant(ctx context.Context, email, password string) (string, error)
	PublicKey(ctx context.Context) (string, error)
	Ingest(ctx context.Context, token, email, dataType string, env *cryptox.Envelope) (*api.IngestResult, error)
	IngestRaw(ctx context.Context, token, email, dataType string, env *cryptox.Envelope) (*api.IngestResult, error)
	LoginAdmin(ctx context.Context, username, password string) (string, error)
	PlantRecords(ctx context.Context, token, email string, limit int) ([]api.Record, error)
}

type State interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	SetSession(ctx context.Context, email, token string) error
	Delete(ctx context.Context, key string) error
}

type App struct {
	api          API
	state        State
	rawThreshold int64
	reader       *bufio.Reader
	out          io.Writer
}

func NewApp(a API, s State, rawThreshold int64, in io.Reader, out io.Writer) *App {
	return &App{api: a, state: s, rawThreshold: rawThreshold, reader: bufio.NewReader(in), out: out}
}

const usage = `usage: plantctl [-a url] [-state path] [-c config.json] <command> [flags]

commands:
  login       [-email address]                 obtain a session token
  public-key                                   print the gateway public key
  ingest      -type T -file F [-raw]           encrypt and upload a JSON document
  logout                                       forget the session token
  records     -email A [-user U] [-limit N]    list a plant's records (admin)
`

// Run dispatches args (os.Args[1:]) to a command. Global flags owned by
// the config package are skipped.
func (a *App) Run(ctx context.Context, args []string) error {
	cmd, rest := splitCommand(args)

	switch cmd {
	case "login":
		return a.login(ctx, rest)
	case "public-key":
		return a.publicKey(ctx)
	case "ingest":
		return a.ingest(ctx, rest)
	case "logout":
		return a.logout(ctx)
	case "records":
		return a.records(ctx, rest)
	case "help":
		fmt.Fprint(a.out, usage)
		return nil
	default:
		fmt.Fprint(a.out, usage)
		return ErrUsage
	}
}

func splitCommand(args []string) (string, []string) {
	global := map[string]struct{}{"-c": {}, "-config": {}}
	for _, f := range config.Flags {
		global[f] = struct{}{}
	}

	for i := 0; i < len(args); i++ {
		arg := args[i]
		if !strings.HasPrefix(arg, "-") {
			return arg, args[i+1:]
		}
		if _, ok := global[arg]; ok && !strings.Contains(arg, "=") {
			i++
		}
	}
	return "", nil
}

func (a *App) flagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.out)
	return fs
}

func (a *App) login(ctx context.Context, args []string) error {
	fs := a.flagSet("login")
	email := fs.String("email", "", "plant email")
	if err := fs.Parse(args); err != nil {
		return ErrUsage
	}

	if *email == "" {
		v, err := GetSimpleText(a.reader, "Plant email", a.out)
		if err != nil {
			return err
		}
		*email = v
	}

	password, err := GetPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	token, err := a.api.LoginPlant(ctx, *email, string(password))
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}

	if err := a.state.SetSession(ctx, *email, token); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "logged in as %s\n", *email)
	return nil
}

func (a *App) publicKey(ctx context.Context) error {
	pem, err := a.refreshKey(ctx)
	if err != nil {
		return err
	}
	fmt.Fprint(a.out, pem)
	return nil
}

func (a *App) refreshKey(ctx context.Context) (string, error) {
	pem, err := a.api.PublicKey(ctx)
	if err != nil {
		return "", fmt.Errorf("public key: %w", err)
	}
	if err := a.state.Set(ctx, state.KeyPublicKey, pem); err != nil {
		return "", err
	}
	return pem, nil
}

func (a *App) cachedKey(ctx context.Context) (string, error) {
	pem, err := a.state.Get(ctx, state.KeyPublicKey)
	if err != nil {
		return "", err
	}
	if pem != "" {
		return pem, nil
	}
	return a.refreshKey(ctx)
}

func (a *App) ingest(ctx context.Context, args []string) error {
	fs := a.flagSet("ingest")
	dataType := fs.String("type", "", "production_order, inventory or quality_report")
	file := fs.String("file", "", "JSON document to upload")
	raw := fs.Bool("raw", false, "force the raw upload endpoint")
	if err := fs.Parse(args); err != nil {
		return ErrUsage
	}
	if *dataType == "" || *file == "" {
		fs.Usage()
		return ErrUsage
	}

	token, err := a.state.Get(ctx, state.KeySessionToken)
	if err != nil {
		return err
	}
	email, err := a.state.Get(ctx, state.KeyPlantEmail)
	if err != nil {
		return err
	}
	if token == "" || email == "" {
		return ErrNotLoggedIn
	}

	payload, err := os.ReadFile(*file)
	if err != nil {
		return err
	}
	if !json.Valid(payload) {
		return fmt.Errorf("%s is not valid JSON", *file)
	}

	pem, err := a.cachedKey(ctx)
	if err != nil {
		return err
	}

	res, err := a.upload(ctx, pem, token, email, *dataType, payload, *raw)
	if isStaleKey(err) {
		// The gateway may have restarted with a new key.
		if pem, err = a.refreshKey(ctx); err != nil {
			return err
		}
		res, err = a.upload(ctx, pem, token, email, *dataType, payload, *raw)
	}
	if err != nil {
		return fmt.Errorf("ingest: %w", err)
	}

	fmt.Fprintf(a.out, "stored %s (%d bytes)\n", res.ID, res.Size)
	return nil
}

func (a *App) upload(ctx context.Context, pem, token, email, dataType string, payload []byte, raw bool) (*api.IngestResult, error) {
	env, err := api.Seal(pem, payload)
	if err != nil {
		return nil, err
	}
	if raw || int64(len(env.Ciphertext)) > a.rawThreshold {
		return a.api.IngestRaw(ctx, token, email, dataType, env)
	}
	return a.api.Ingest(ctx, token, email, dataType, env)
}

func isStaleKey(err error) bool {
	var e *api.Error
	return errors.As(err, &e) && e.Status == http.StatusBadRequest && e.Message == "decryption failed"
}

func (a *App) logout(ctx context.Context) error {
	if err := a.state.Delete(ctx, state.KeySessionToken); err != nil {
		return err
	}
	if err := a.state.Delete(ctx, state.KeyPlantEmail); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "logged out")
	return nil
}

// records logs in as admin for this one call; the admin token is not kept.
func (a *App) records(ctx context.Context, args []string) error {
	fs := a.flagSet("records")
	email := fs.String("email", "", "plant email")
	user := fs.String("user", "admin", "admin username")
	limit := fs.Int("limit", 0, "maximum records to list")
	if err := fs.Parse(args); err != nil {
		return ErrUsage
	}
	if *email == "" {
		fs.Usage()
		return ErrUsage
	}

	password, err := GetPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	token, err := a.api.LoginAdmin(ctx, *user, string(password))
	if err != nil {
		return fmt.Errorf("admin login: %w", err)
	}

	recs, err := a.api.PlantRecords(ctx, token, *email, *limit)
	if err != nil {
		return fmt.Errorf("records: %w", err)
	}

	for _, r := range recs {
		where := "inline"
		if r.BlobKey != "" {
			where = "blob:" + r.BlobKey
		}
		fmt.Fprintf(a.out, "%s  %s  %s  %d  %s  %s\n", r.CreatedAt.UTC().Format(time.RFC3339), r.ID, r.DataType, r.Size, r.IPAddress, where)
	}
	if len(recs) == 0 {
		fmt.Fprintln(a.out, "no records")
	}
	return nil
}
