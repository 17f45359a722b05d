package devotion

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	prayersCollection           = "prayers"
	invocationsCollection       = "invocations"
	invocationOptionsCollection = "invocation_options"
	catalogCollection           = "invocation_catalog"
	profilesCollection          = "profiles"
)

type firestoreRepository struct {
	client *firestore.Client
}

// NewFirestoreRepository instantiates a Firestore-backed repository.
func NewFirestoreRepository(client *firestore.Client) Repository {
	return &firestoreRepository{client: client}
}

func (r *firestoreRepository) userCollection(userID, name string) *firestore.CollectionRef {
	return r.client.Collection("users").Doc(userID).Collection(name)
}

// ===== Prayers =====

func (r *firestoreRepository) CreatePrayer(ctx context.Context, prayer Prayer) (Prayer, error) {
	ref := r.userCollection(prayer.UserID, prayersCollection).Doc(prayer.ID)
	_, err := ref.Create(ctx, map[string]any{
		"type":     prayer.Type,
		"location": prayer.Location,
		"note":     prayer.Note,
		"on_time":  prayer.OnTime,
		"date":     firestore.ServerTimestamp,
	})
	if status.Code(err) == codes.AlreadyExists {
		return Prayer{}, ErrConflict
	}
	if err != nil {
		return Prayer{}, err
	}
	return r.getPrayer(ctx, ref, prayer.UserID)
}

func (r *firestoreRepository) UpdatePrayer(ctx context.Context, userID, prayerID string, patch PrayerPatch) (Prayer, error) {
	var updates []firestore.Update
	if patch.Type != nil {
		updates = append(updates, firestore.Update{Path: "type", Value: *patch.Type})
	}
	if patch.Location != nil {
		updates = append(updates, firestore.Update{Path: "location", Value: *patch.Location})
	}
	if patch.Note != nil {
		updates = append(updates, firestore.Update{Path: "note", Value: *patch.Note})
	}
	if patch.OnTime != nil {
		updates = append(updates, firestore.Update{Path: "on_time", Value: *patch.OnTime})
	}

	ref := r.userCollection(userID, prayersCollection).Doc(prayerID)
	if _, err := ref.Update(ctx, updates); err != nil {
		if status.Code(err) == codes.NotFound {
			return Prayer{}, ErrNotFound
		}
		return Prayer{}, err
	}
	return r.getPrayer(ctx, ref, userID)
}

func (r *firestoreRepository) DeletePrayer(ctx context.Context, userID, prayerID string) error {
	return deleteExisting(ctx, r.userCollection(userID, prayersCollection).Doc(prayerID))
}

func (r *firestoreRepository) ListPrayers(ctx context.Context, userID string) ([]Prayer, error) {
	docs, err := listDocuments(ctx, r.userCollection(userID, prayersCollection).Query)
	if err != nil {
		return nil, err
	}
	return decodePrayers(userID, docs), nil
}

func (r *firestoreRepository) getPrayer(ctx context.Context, ref *firestore.DocumentRef, userID string) (Prayer, error) {
	doc, err := ref.Get(ctx)
	if status.Code(err) == codes.NotFound {
		return Prayer{}, ErrNotFound
	}
	if err != nil {
		return Prayer{}, err
	}
	return prayerFromData(userID, doc.Ref.ID, doc.Data()), nil
}

// ===== Invocations =====

func (r *firestoreRepository) CreateInvocation(ctx context.Context, inv Invocation) (Invocation, error) {
	ref := r.userCollection(inv.UserID, invocationsCollection).Doc(inv.ID)
	_, err := ref.Create(ctx, map[string]any{
		"name":            inv.Name,
		"category":        inv.Category,
		"count":           inv.Count,
		"last_recited_at": firestore.ServerTimestamp,
	})
	if status.Code(err) == codes.AlreadyExists {
		return Invocation{}, ErrConflict
	}
	if err != nil {
		return Invocation{}, err
	}
	return r.getInvocation(ctx, ref, inv.UserID)
}

func (r *firestoreRepository) IncrementInvocation(ctx context.Context, userID, invocationID string) (Invocation, error) {
	ref := r.userCollection(userID, invocationsCollection).Doc(invocationID)
	_, err := ref.Update(ctx, []firestore.Update{
		{Path: "count", Value: firestore.Increment(1)},
		{Path: "last_recited_at", Value: firestore.ServerTimestamp},
	})
	if status.Code(err) == codes.NotFound {
		return Invocation{}, ErrNotFound
	}
	if err != nil {
		return Invocation{}, err
	}
	return r.getInvocation(ctx, ref, userID)
}

func (r *firestoreRepository) DeleteInvocation(ctx context.Context, userID, invocationID string) error {
	return deleteExisting(ctx, r.userCollection(userID, invocationsCollection).Doc(invocationID))
}

func (r *firestoreRepository) ListInvocations(ctx context.Context, userID string) ([]Invocation, error) {
	docs, err := listDocuments(ctx, r.userCollection(userID, invocationsCollection).Query)
	if err != nil {
		return nil, err
	}
	return decodeInvocations(userID, docs), nil
}

func (r *firestoreRepository) getInvocation(ctx context.Context, ref *firestore.DocumentRef, userID string) (Invocation, error) {
	doc, err := ref.Get(ctx)
	if status.Code(err) == codes.NotFound {
		return Invocation{}, ErrNotFound
	}
	if err != nil {
		return Invocation{}, err
	}
	return invocationFromData(userID, doc.Ref.ID, doc.Data()), nil
}

// ===== Invocation options =====

func (r *firestoreRepository) ListInvocationOptions(ctx context.Context, userID string) ([]InvocationOption, error) {
	docs, err := listDocuments(ctx, r.userCollection(userID, invocationOptionsCollection).Query)
	if err != nil {
		return nil, err
	}
	options := make([]InvocationOption, 0, len(docs))
	for _, doc := range docs {
		options = append(options, InvocationOption{
			ID:   doc.Ref.ID,
			Name: stringField(doc.Data(), "name"),
		})
	}
	return options, nil
}

func (r *firestoreRepository) CreateInvocationOption(ctx context.Context, userID string, opt InvocationOption) error {
	_, err := r.userCollection(userID, invocationOptionsCollection).Doc(opt.ID).Create(ctx, map[string]any{
		"name":       opt.Name,
		"created_at": firestore.ServerTimestamp,
	})
	if status.Code(err) == codes.AlreadyExists {
		return ErrConflict
	}
	return err
}

func (r *firestoreRepository) DeleteInvocationOption(ctx context.Context, userID, optionID string) error {
	return deleteExisting(ctx, r.userCollection(userID, invocationOptionsCollection).Doc(optionID))
}

// ===== Catalog =====

func (r *firestoreRepository) ListCatalog(ctx context.Context) ([]CatalogEntry, error) {
	docs, err := listDocuments(ctx, r.client.Collection(catalogCollection).Query)
	if err != nil {
		return nil, err
	}
	entries := make([]CatalogEntry, 0, len(docs))
	for _, doc := range docs {
		entries = append(entries, catalogFromData(doc.Ref.ID, doc.Data()))
	}
	return entries, nil
}

func (r *firestoreRepository) CreateCatalogEntry(ctx context.Context, entry CatalogEntry) (CatalogEntry, error) {
	ref := r.client.Collection(catalogCollection).Doc(entry.ID)
	_, err := ref.Create(ctx, map[string]any{
		"text":       entry.Text,
		"created_at": firestore.ServerTimestamp,
	})
	if status.Code(err) == codes.AlreadyExists {
		return CatalogEntry{}, ErrConflict
	}
	if err != nil {
		return CatalogEntry{}, err
	}

	doc, err := ref.Get(ctx)
	if err != nil {
		return CatalogEntry{}, err
	}
	return catalogFromData(doc.Ref.ID, doc.Data()), nil
}

func (r *firestoreRepository) DeleteCatalogEntry(ctx context.Context, entryID string) error {
	return deleteExisting(ctx, r.client.Collection(catalogCollection).Doc(entryID))
}

// ===== Profile =====

func (r *firestoreRepository) GetProfile(ctx context.Context, userID string) (Profile, error) {
	doc, err := r.client.Collection(profilesCollection).Doc(userID).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return Profile{UserID: userID}, nil
	}
	if err != nil {
		return Profile{}, err
	}

	data := doc.Data()
	return Profile{
		UserID:    userID,
		PhotoPath: stringField(data, "photo_path"),
		UpdatedAt: TimestampOf(data["updated_at"]),
	}, nil
}

func (r *firestoreRepository) SetProfilePhoto(ctx context.Context, userID, photoPath string) (Profile, error) {
	_, err := r.client.Collection(profilesCollection).Doc(userID).Set(ctx, map[string]any{
		"user_id":    userID,
		"photo_path": photoPath,
		"updated_at": firestore.ServerTimestamp,
	}, firestore.MergeAll)
	if err != nil {
		return Profile{}, err
	}
	return r.GetProfile(ctx, userID)
}

// ===== Subscriptions =====

func (r *firestoreRepository) SubscribePrayers(ctx context.Context, userID string, fn func([]Prayer)) error {
	return watchQuery(ctx, r.userCollection(userID, prayersCollection).Query, func(docs []*firestore.DocumentSnapshot) {
		fn(decodePrayers(userID, docs))
	})
}

func (r *firestoreRepository) SubscribeInvocations(ctx context.Context, userID string, fn func([]Invocation)) error {
	return watchQuery(ctx, r.userCollection(userID, invocationsCollection).Query, func(docs []*firestore.DocumentSnapshot) {
		fn(decodeInvocations(userID, docs))
	})
}

// watchQuery hands every full query snapshot to fn until ctx is done.
func watchQuery(ctx context.Context, query firestore.Query, fn func([]*firestore.DocumentSnapshot)) error {
	iter := query.Snapshots(ctx)
	defer iter.Stop()

	for {
		snap, err := iter.Next()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("query snapshot: %w", err)
		}

		docs, err := snap.Documents.GetAll()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read snapshot documents: %w", err)
		}
		fn(docs)
	}
}

func listDocuments(ctx context.Context, query firestore.Query) ([]*firestore.DocumentSnapshot, error) {
	iter := query.Documents(ctx)
	defer iter.Stop()

	var docs []*firestore.DocumentSnapshot
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func deleteExisting(ctx context.Context, ref *firestore.DocumentRef) error {
	_, err := ref.Delete(ctx, firestore.Exists)
	if status.Code(err) == codes.NotFound {
		return ErrNotFound
	}
	return err
}

// ===== Decoding =====
//
// Documents are read as raw maps rather than with DataTo: records imported
// from the realtime database carry their timestamps as numbers or numeric
// strings, while native writes carry Firestore timestamps.

func decodePrayers(userID string, docs []*firestore.DocumentSnapshot) []Prayer {
	prayers := make([]Prayer, 0, len(docs))
	for _, doc := range docs {
		prayers = append(prayers, prayerFromData(userID, doc.Ref.ID, doc.Data()))
	}
	return prayers
}

func decodeInvocations(userID string, docs []*firestore.DocumentSnapshot) []Invocation {
	invocations := make([]Invocation, 0, len(docs))
	for _, doc := range docs {
		invocations = append(invocations, invocationFromData(userID, doc.Ref.ID, doc.Data()))
	}
	return invocations
}

func prayerFromData(userID, id string, data map[string]any) Prayer {
	return Prayer{
		ID:       id,
		UserID:   userID,
		Type:     stringField(data, "type"),
		Location: stringField(data, "location"),
		Note:     stringField(data, "note"),
		OnTime:   boolField(data, "on_time"),
		Date:     TimestampOf(data["date"]),
	}
}

func invocationFromData(userID, id string, data map[string]any) Invocation {
	return Invocation{
		ID:            id,
		UserID:        userID,
		Name:          stringField(data, "name"),
		Category:      stringField(data, "category"),
		Count:         intField(data, "count"),
		LastRecitedAt: TimestampOf(data["last_recited_at"]),
	}
}

func catalogFromData(id string, data map[string]any) CatalogEntry {
	return CatalogEntry{
		ID:        id,
		Text:      stringField(data, "text"),
		CreatedAt: TimestampOf(data["created_at"]),
	}
}

func stringField(m map[string]any, key string) string {
	if val, ok := m[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}

func boolField(m map[string]any, key string) bool {
	v, _ := m[key].(bool)
	return v
}

func intField(m map[string]any, key string) int {
	switch v := m[key].(type) {
	case int64:
		return int(v)
	case int:
		return v
	case float64:
		return int(v)
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}
