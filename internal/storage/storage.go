// Package storage persists swap receipts, bot tick records and bot state.
package storage

import (
	"context"
	"errors"

	"swapEngine/internal/model"
)

// Journal is a sink for swap receipts and bot ticks.
type Journal interface {
	PutReceipt(ctx context.Context, receipt model.SwapReceipt) error
	PutTick(ctx context.Context, tick model.TickRecord) error
}

// ReceiptReader lists journaled receipts, newest first.
type ReceiptReader interface {
	Receipts(ctx context.Context, limit int) ([]model.SwapReceipt, error)
}

// StateStore keeps small named values across restarts.
type StateStore interface {
	LoadState(ctx context.Context, name string) (string, bool, error)
	SaveState(ctx context.Context, name, value string) error
}

type multiJournal []Journal

// Multi fans writes out to every journal and joins their errors.
func Multi(journals ...Journal) Journal {
	var out multiJournal
	for _, j := range journals {
		if j != nil {
			out = append(out, j)
		}
	}
	return out
}

func (m multiJournal) PutReceipt(ctx context.Context, receipt model.SwapReceipt) error {
	var errs []error
	for _, j := range m {
		if err := j.PutReceipt(ctx, receipt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m multiJournal) PutTick(ctx context.Context, tick model.TickRecord) error {
	var errs []error
	for _, j := range m {
		if err := j.PutTick(ctx, tick); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
