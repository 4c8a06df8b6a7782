package storage

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/bytedance/sonic"
)

const boardPartition = "board"

type entityClient interface {
	GetEntity(ctx context.Context, partitionKey string, rowKey string, options *aztables.GetEntityOptions) (aztables.GetEntityResponse, error)
	UpsertEntity(ctx context.Context, entity []byte, options *aztables.UpsertEntityOptions) (aztables.UpsertEntityResponse, error)
	DeleteEntity(ctx context.Context, partitionKey string, rowKey string, options *aztables.DeleteEntityOptions) (aztables.DeleteEntityResponse, error)
}

type slotEntity struct {
	aztables.Entity
	Data string `json:"Data"`
}

// TableSlot stores the value as the Data property of one table entity,
// partition "board" and row key equal to the slot name.
type TableSlot struct {
	table entityClient
	row   string
}

// NewTableClient opens a table client with the retry policy used for every
// table in the deployment.
func NewTableClient(connStr, table string) (*aztables.Client, error) {
	opts := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute * 3,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 15,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &opts)
	if err != nil {
		return nil, err
	}
	return svc.NewClient(table), nil
}

func NewTableSlot(table entityClient, row string) *TableSlot {
	if table == nil {
		panic("storage.NewTableSlot: table client is nil")
	}
	return &TableSlot{table: table, row: row}
}

func (t *TableSlot) Name() string { return "table:" + t.row }

func (t *TableSlot) Read(ctx context.Context) ([]byte, error) {
	resp, err := t.table.GetEntity(ctx, boardPartition, t.row, nil)
	if err != nil {
		if isStatus(err, http.StatusNotFound) {
			return nil, ErrSlotEmpty
		}
		return nil, err
	}
	var ent slotEntity
	if err := sonic.Unmarshal(resp.Value, &ent); err != nil {
		return nil, err
	}
	return []byte(ent.Data), nil
}

func (t *TableSlot) Write(ctx context.Context, data []byte) error {
	ent := map[string]any{
		"PartitionKey": boardPartition,
		"RowKey":       t.row,
		"Data":         string(data),
	}
	payload, err := sonic.Marshal(ent)
	if err == nil {
		_, err = t.table.UpsertEntity(ctx, payload, nil)
	}
	return err
}

func (t *TableSlot) Clear(ctx context.Context) error {
	_, err := t.table.DeleteEntity(ctx, boardPartition, t.row, nil)
	if err != nil && isStatus(err, http.StatusNotFound) {
		return nil
	}
	return err
}

func isStatus(err error, code int) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == code
}
