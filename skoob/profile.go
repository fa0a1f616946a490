package skoob

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ProfileService mutates the logged-in user's virtual bookshelf.
// Every method requires a prior Login or LoginWithCookie.
type ProfileService struct {
	session *session
}

// AddBookLabel toggles a label, such as favorite or wishlist, on an
// edition.
func (s *ProfileService) AddBookLabel(ctx context.Context, editionID int, label BookLabel) error {
	return s.action(ctx, "profile:AddBookLabel", fmt.Sprintf("/v1/label_add/%d/%d", editionID, label))
}

// RemoveBookLabel clears the label currently set on an edition.
func (s *ProfileService) RemoveBookLabel(ctx context.Context, editionID int) error {
	return s.action(ctx, "profile:RemoveBookLabel", fmt.Sprintf("/v1/label_del/%d", editionID))
}

// UpdateBookStatus sets the reading status of an edition, moving it
// between the read, reading, want-to-read, rereading and abandoned
// shelves.
func (s *ProfileService) UpdateBookStatus(ctx context.Context, editionID int, status BookStatus) error {
	return s.action(ctx, "profile:UpdateBookStatus", fmt.Sprintf("/v1/shelf_add/%d/%d", editionID, status))
}

// RemoveBookStatus drops an edition from the user's shelves entirely.
func (s *ProfileService) RemoveBookStatus(ctx context.Context, editionID int) error {
	return s.action(ctx, "profile:RemoveBookStatus", fmt.Sprintf("/v1/shelf_del/%d", editionID))
}

// ChangeBookShelf reclassifies an edition as a book, comic or
// magazine.
func (s *ProfileService) ChangeBookShelf(ctx context.Context, editionID int, kind ShelfKind) error {
	return s.action(ctx, "profile:ChangeBookShelf", fmt.Sprintf("/estante/prateleira/%d/%s", editionID, kind))
}

// Rate scores an edition from 0 to 5. Fractional ratings are
// accepted, the site rounds them to half stars.
func (s *ProfileService) Rate(ctx context.Context, editionID int, rating float64) error {
	ctx, span := tracer.Start(ctx, "profile:Rate")
	defer span.End()

	if err := s.session.require("profile:Rate"); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "not logged in")
		return err
	}
	if rating < 0 || rating > 5 {
		err := fmt.Errorf("rating %g out of range 0 to 5", rating)
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid rating")
		return err
	}
	return s.do(ctx, span, "profile:Rate", fmt.Sprintf("/v1/book_rate/%d/%g", editionID, rating))
}

// action runs one GET-style profile mutation against the JSON API and
// maps an unsuccessful envelope to an error.
func (s *ProfileService) action(ctx context.Context, op, path string) error {
	ctx, span := tracer.Start(ctx, op)
	defer span.End()

	if err := s.session.require(op); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "not logged in")
		return err
	}
	return s.do(ctx, span, op, path)
}

func (s *ProfileService) do(ctx context.Context, span trace.Span, op, path string) error {
	res, err := s.session.observedGet(ctx, path)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		return err
	}
	env, err := decodeEnvelope(op, res)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "bad envelope")
		return err
	}
	if !env.Success {
		err := fmt.Errorf("%s: server refused: %s", op, env.reason())
		span.RecordError(err)
		span.SetStatus(codes.Error, "refused")
		return err
	}
	return nil
}
