package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/prreminder/frontend/pkg/domain/model"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func (f *Firestore) PutSession(ctx context.Context, session *model.Session) error {
	if err := session.Validate(); err != nil {
		return goerr.Wrap(err, "invalid session")
	}

	docRef := f.sessions().Doc(session.ID.String())
	if _, err := docRef.Set(ctx, session); err != nil {
		return goerr.Wrap(err, "failed to put session to firestore", goerr.V("id", session.ID))
	}

	return nil
}

func (f *Firestore) GetSession(ctx context.Context, id model.SessionID) (*model.Session, error) {
	if err := id.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid session ID")
	}

	doc, err := f.sessions().Doc(id.String()).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(ErrNotFound, "session is not stored", goerr.V("id", id))
		}
		return nil, goerr.Wrap(err, "failed to get session from firestore", goerr.V("id", id))
	}

	var session model.Session
	if err := doc.DataTo(&session); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal session", goerr.V("id", id))
	}

	return &session, nil
}

func (f *Firestore) DeleteSession(ctx context.Context, id model.SessionID) error {
	if err := id.Validate(); err != nil {
		return goerr.Wrap(err, "invalid session ID")
	}

	docRef := f.sessions().Doc(id.String())
	if _, err := docRef.Delete(ctx, firestore.Exists); err != nil {
		if status.Code(err) == codes.NotFound {
			return goerr.Wrap(ErrNotFound, "session is not stored", goerr.V("id", id))
		}
		return goerr.Wrap(err, "failed to delete session from firestore", goerr.V("id", id))
	}

	return nil
}

func (f *Firestore) DeleteExpiredSessions(ctx context.Context, now time.Time) ([]model.SessionID, error) {
	const batchSize = 500
	var deleted []model.SessionID

	for {
		iter := f.sessions().
			Where("expires_at", "<=", now).
			Limit(batchSize).
			Documents(ctx)
		bulkWriter := f.client.BulkWriter(ctx)
		count := 0

		for {
			doc, err := iter.Next()
			if err == iterator.Done {
				break
			}
			if err != nil {
				iter.Stop()
				bulkWriter.End()
				return deleted, goerr.Wrap(err, "failed to iterate expired sessions")
			}

			if _, err := bulkWriter.Delete(doc.Ref); err != nil {
				iter.Stop()
				bulkWriter.End()
				return deleted, goerr.Wrap(err, "failed to delete expired session", goerr.V("id", doc.Ref.ID))
			}
			deleted = append(deleted, model.SessionID(doc.Ref.ID))
			count++
		}
		iter.Stop()
		bulkWriter.End()

		if count < batchSize {
			break
		}
	}

	return deleted, nil
}
