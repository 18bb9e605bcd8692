package tablesvc

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// sequencesCollection holds one counter document per table.
const sequencesCollection = "_sequences"

// FirestoreDriver stores each table as a collection; the document id is the
// decimal row id.
type FirestoreDriver struct {
	client *firestore.Client
	now    func() time.Time
}

// NewFirestoreDriver wraps an existing client.
func NewFirestoreDriver(client *firestore.Client) *FirestoreDriver {
	return &FirestoreDriver{client: client, now: time.Now}
}

// OpenFirestore builds a client for firestore://<project>?database=<id>.
// key is a service account JSON path; empty uses application default
// credentials (or FIRESTORE_EMULATOR_HOST when set).
func OpenFirestore(ctx context.Context, u *url.URL, key string) (*FirestoreDriver, error) {
	projectID := u.Host
	if projectID == "" {
		return nil, fmt.Errorf("firestore endpoint needs a project: firestore://<project>")
	}

	var opts []option.ClientOption
	if key != "" {
		opts = append(opts, option.WithCredentialsFile(key))
	}

	var (
		client *firestore.Client
		err    error
	)
	if db := u.Query().Get("database"); db != "" {
		client, err = firestore.NewClientWithDatabase(ctx, projectID, db, opts...)
	} else {
		client, err = firestore.NewClient(ctx, projectID, opts...)
	}
	if err != nil {
		return nil, fmt.Errorf("new firestore client: %w", err)
	}
	return NewFirestoreDriver(client), nil
}

func docID(id int64) string { return strconv.FormatInt(id, 10) }

func (d *FirestoreDriver) query(q Query) firestore.Query {
	fq := d.client.Collection(q.Table).Query
	for _, c := range q.Where {
		fq = fq.Where(c.Column, "==", c.Value)
	}
	for _, o := range q.OrderBy {
		dir := firestore.Asc
		if o.Direction == Descending {
			dir = firestore.Desc
		}
		fq = fq.OrderBy(o.Column, dir)
	}
	return fq
}

func (d *FirestoreDriver) Select(ctx context.Context, q Query) ([]Row, error) {
	iter := d.query(q).Documents(ctx)
	defer iter.Stop()

	var out []Row
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterate rows: %w", err)
		}
		var r Row
		if err := doc.DataTo(&r); err != nil {
			return nil, fmt.Errorf("unmarshal row: %w", err)
		}
		out = append(out, r)
	}
	return out, nil
}

func (d *FirestoreDriver) Insert(ctx context.Context, table string, row Row) (Row, error) {
	counter := d.client.Collection(sequencesCollection).Doc(table)
	coll := d.client.Collection(table)

	var stored Row
	err := d.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		var next int64
		snap, err := tx.Get(counter)
		switch {
		case status.Code(err) == codes.NotFound:
		case err != nil:
			return err
		default:
			v, err := snap.DataAt("next")
			if err != nil {
				return err
			}
			n, ok := v.(int64)
			if !ok {
				return fmt.Errorf("sequence for %s is %T, want int64", table, v)
			}
			next = n
		}
		next++

		stored = row
		stored.ID = next
		stored.CreatedAt = d.now().UTC()
		if err := tx.Set(counter, map[string]any{"next": next}); err != nil {
			return err
		}
		return tx.Create(coll.Doc(docID(next)), stored)
	})
	if err != nil {
		return Row{}, fmt.Errorf("insert row: %w", err)
	}
	return stored, nil
}

func (d *FirestoreDriver) refs(ctx context.Context, q Query) ([]*firestore.DocumentRef, error) {
	if id, ok := q.IDOnly(); ok {
		return []*firestore.DocumentRef{d.client.Collection(q.Table).Doc(docID(id))}, nil
	}
	iter := d.query(Query{Table: q.Table, Where: q.Where}).Documents(ctx)
	defer iter.Stop()

	var refs []*firestore.DocumentRef
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterate rows: %w", err)
		}
		refs = append(refs, doc.Ref)
	}
	return refs, nil
}

func (d *FirestoreDriver) Update(ctx context.Context, q Query, p Patch) ([]Row, error) {
	refs, err := d.refs(ctx, q)
	if err != nil {
		return nil, err
	}

	var updates []firestore.Update
	if p.Title != nil {
		updates = append(updates, firestore.Update{Path: ColTitle, Value: *p.Title})
	}
	if p.Completed != nil {
		updates = append(updates, firestore.Update{Path: ColCompleted, Value: *p.Completed})
	}

	var out []Row
	for _, ref := range refs {
		if _, err := ref.Update(ctx, updates); err != nil {
			if status.Code(err) == codes.NotFound {
				continue
			}
			return nil, fmt.Errorf("update row %s: %w", ref.ID, err)
		}
		snap, err := ref.Get(ctx)
		if err != nil {
			return nil, fmt.Errorf("read row %s: %w", ref.ID, err)
		}
		var r Row
		if err := snap.DataTo(&r); err != nil {
			return nil, fmt.Errorf("unmarshal row: %w", err)
		}
		out = append(out, r)
	}
	return out, nil
}

func (d *FirestoreDriver) Delete(ctx context.Context, q Query) error {
	refs, err := d.refs(ctx, q)
	if err != nil {
		return err
	}
	for _, ref := range refs {
		if _, err := ref.Delete(ctx); err != nil {
			return fmt.Errorf("delete row %s: %w", ref.ID, err)
		}
	}
	return nil
}

func (d *FirestoreDriver) Close() error {
	return d.client.Close()
}
