package models

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
)

type mongoSubmissionJournal struct {
	col     *mongo.Collection
	timeout time.Duration
}

// NewMongoSubmissionJournal stores one document per intake attempt.
func NewMongoSubmissionJournal(col *mongo.Collection, timeout time.Duration) SubmissionJournal {
	return &mongoSubmissionJournal{col: col, timeout: timeout}
}

func (j *mongoSubmissionJournal) Record(ctx context.Context, s Submission) error {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()
	_, err := j.col.InsertOne(ctx, s)
	return err
}

// NopJournal discards submissions.
type NopJournal struct{}

func (NopJournal) Record(context.Context, Submission) error { return nil }
