package grpc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/agencysync/internal/common"
	"github.com/dmitrijs2005/agencysync/internal/server/models"
)

type fakeRecords struct {
	mu      sync.Mutex
	rows    map[string]*models.Record
	seq     int
	lastBy  string
	failing error
}

func newFakeRecords() *fakeRecords { return &fakeRecords{rows: map[string]*models.Record{}} }

func (f *fakeRecords) Get(_ context.Context, table, id string) (*models.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing != nil {
		return nil, f.failing
	}
	r, ok := f.rows[table+"/"+id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return r, nil
}

func (f *fakeRecords) Insert(_ context.Context, deviceID, table, originID string, payload map[string]any) (*models.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing != nil {
		return nil, f.failing
	}
	for _, r := range f.rows {
		if originID != "" && r.Table == table && r.OriginID == originID {
			return r, nil
		}
	}
	f.seq++
	id, _ := payload["id"].(string)
	if id == "" {
		id = fmt.Sprintf("srv-%d", f.seq)
	}
	data := map[string]any{}
	for k, v := range payload {
		if k != "id" && k != "code" {
			data[k] = v
		}
	}
	r := &models.Record{
		Table: table, ID: id, Code: fmt.Sprintf("X2025-%04d", f.seq), OriginID: originID,
		Payload: data, UpdatedBy: deviceID, UpdatedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	f.rows[table+"/"+id] = r
	f.lastBy = deviceID
	return r, nil
}

func (f *fakeRecords) Update(_ context.Context, deviceID, table, id string, payload map[string]any) (*models.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rows[table+"/"+id]
	if !ok {
		return nil, common.ErrNotFound
	}
	r.Payload = payload
	r.UpdatedBy = deviceID
	f.lastBy = deviceID
	return r, nil
}

func (f *fakeRecords) Delete(_ context.Context, deviceID, table, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[table+"/"+id]; !ok {
		return common.ErrNotFound
	}
	delete(f.rows, table+"/"+id)
	f.lastBy = deviceID
	return nil
}

type fakeDevices struct {
	secrets map[string]string
	issue   func(deviceID string) (string, error)
	calls   int
}

func (f *fakeDevices) Authenticate(_ context.Context, deviceID, secret string) (string, error) {
	f.calls++
	if deviceID == "" {
		return "", common.ErrValidation
	}
	if want, ok := f.secrets[deviceID]; !ok || want != secret {
		return "", common.ErrUnauthorized
	}
	return f.issue(deviceID)
}
