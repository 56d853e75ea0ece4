package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/db"
	"golang.org/x/oauth2"
	"google.golang.org/api/option"

	"github.com/astromechza/shared-list/pkg/list"
)

type RemoteConfig struct {
	// DatabaseURL is the database root, e.g. https://<project>.firebaseio.com.
	// A plain http url is treated as an emulator.
	DatabaseURL string
	// CredentialsFile is a service account key. Token is a ready OAuth2
	// access token. Without either, application default credentials apply.
	CredentialsFile string
	Token           string
	// ClientOptions go to the firebase app after the credentials above.
	ClientOptions []option.ClientOption
	Now           func() time.Time
}

// Remote keeps the document in a Firebase Realtime Database at
// lists/shared.
type Remote struct {
	host string
	ref  *db.Ref
	now  func() time.Time
}

func NewRemote(ctx context.Context, cfg RemoteConfig) (*Remote, error) {
	dbUrl, err := url.Parse(strings.TrimRight(cfg.DatabaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid remote url: %w", err)
	}
	if dbUrl.Scheme != "http" && dbUrl.Scheme != "https" {
		return nil, fmt.Errorf("invalid remote url scheme %q", dbUrl.Scheme)
	}

	var opts []option.ClientOption
	switch {
	case cfg.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	case cfg.Token != "":
		opts = append(opts, option.WithTokenSource(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token})))
	}
	opts = append(opts, cfg.ClientOptions...)

	app, err := firebase.NewApp(ctx, &firebase.Config{DatabaseURL: dbUrl.String()}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to set up firebase: %w", err)
	}
	client, err := app.Database(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to set up the database client: %w", err)
	}
	r := &Remote{host: dbUrl.Host, ref: client.NewRef("lists/" + list.DocumentID), now: cfg.Now}
	if r.now == nil {
		r.now = time.Now
	}
	return r, nil
}

type remoteRecord struct {
	ID        string      `json:"_id"`
	Items     []list.Item `json:"items"`
	UpdatedAt string      `json:"updatedAt"`
}

func recordOf(d list.Document) remoteRecord {
	items := d.Items
	if items == nil {
		items = []list.Item{}
	}
	return remoteRecord{ID: d.ID, Items: items, UpdatedAt: formatTime(d.UpdatedAt)}
}

// documentOf reads any stored value. Only an object can carry items, so a
// scalar or array reads as an empty list.
func documentOf(v any) list.Document {
	out := list.Document{ID: list.DocumentID, Items: list.NormalizeValue(nil)}
	m, ok := v.(map[string]any)
	if !ok {
		return out
	}
	out.Items = list.NormalizeValue(m["items"])
	if raw, ok := m["updatedAt"].(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			out.UpdatedAt = t
		}
	}
	return out
}

// errRecordExists stops a create transaction without writing.
var errRecordExists = errors.New("record exists")

func (r *Remote) Fetch(ctx context.Context) (list.Document, error) {
	var current any
	if err := r.ref.Get(ctx, &current); err != nil {
		return list.Document{}, backendErr("fetch", err)
	}
	if current != nil {
		return documentOf(current), nil
	}

	var out list.Document
	err := r.ref.Transaction(ctx, func(node db.TransactionNode) (interface{}, error) {
		var existing any
		if err := node.Unmarshal(&existing); err != nil {
			return nil, err
		}
		if existing != nil {
			// someone else created it between our read and write
			out = documentOf(existing)
			return nil, errRecordExists
		}
		out = list.NewDocument(r.now())
		return recordOf(out), nil
	})
	switch {
	case errors.Is(err, errRecordExists):
		return out, nil
	case err != nil:
		return list.Document{}, backendErr("fetch", err)
	}
	slog.Info("created shared document", "id", list.DocumentID, "remote", r.host)
	return out, nil
}

func (r *Remote) Replace(ctx context.Context, items []list.Item) error {
	next := list.NewDocument(r.now())
	next.Items = items
	if err := r.ref.Set(ctx, recordOf(next)); err != nil {
		return backendErr("replace", err)
	}
	return nil
}

func (r *Remote) Close() error {
	return nil
}
