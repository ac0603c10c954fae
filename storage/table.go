package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/bytedance/sonic"

	"task-api/domain"
)

const tablePartition = "tasks"

// TableBackend persists tasks as rows of an Azure Storage table. Row keys
// are the zero-padded collection positions.
type TableBackend struct {
	client *aztables.Client
}

// NewTableBackend creates a backend for table in the account referenced by connStr.
func NewTableBackend(connStr, table string) (*TableBackend, error) {
	if connStr == "" || table == "" {
		return nil, errors.New("table backend requires connection string and table name")
	}
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
	return &TableBackend{client: svc.NewClient(table)}, nil
}

// EnsureTable creates the table if it does not exist yet.
func (t *TableBackend) EnsureTable(ctx context.Context) error {
	_, err := t.client.CreateTable(ctx, nil)
	if err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) && respErr.ErrorCode == string(aztables.TableAlreadyExists) {
			return nil
		}
		return err
	}
	return nil
}

// taskEntity omits the service-managed Timestamp so it is never sent on writes.
type taskEntity struct {
	PartitionKey string `json:"PartitionKey"`
	RowKey       string `json:"RowKey"`
	TaskID       string `json:"TaskId"`
	Title        string `json:"Title"`
	Description  string `json:"Description"`
	Priority     string `json:"Priority"`
	Status       string `json:"Status"`
	CreatedAt    string `json:"CreatedAt"`
}

func tableRowKey(pos int) string {
	return fmt.Sprintf("%010d", pos)
}

func encodeTaskEntity(pos int, task domain.Task) ([]byte, error) {
	ent := taskEntity{
		PartitionKey: tablePartition,
		RowKey:       tableRowKey(pos),
		TaskID:       task.ID,
		Title:        task.Title,
		Description:  task.Description,
		Priority:     string(task.Priority),
		Status:       string(task.Status),
		CreatedAt:    task.CreatedAt,
	}
	return sonic.Marshal(ent)
}

func decodeTaskEntity(data []byte) (int, domain.Task, error) {
	var ent taskEntity
	if err := sonic.Unmarshal(data, &ent); err != nil {
		return 0, domain.Task{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	pos, err := strconv.Atoi(ent.RowKey)
	if err != nil {
		return 0, domain.Task{}, fmt.Errorf("%w: row key %q", ErrCorrupt, ent.RowKey)
	}
	return pos, domain.Task{
		ID:          ent.TaskID,
		Title:       ent.Title,
		Description: ent.Description,
		Priority:    domain.Priority(ent.Priority),
		Status:      domain.Status(ent.Status),
		CreatedAt:   ent.CreatedAt,
	}, nil
}

type positionedTask struct {
	pos  int
	task domain.Task
}

func (t *TableBackend) list(ctx context.Context) ([]positionedTask, error) {
	filter := "PartitionKey eq '" + tablePartition + "'"
	pager := t.client.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	rows := []positionedTask{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			var respErr *azcore.ResponseError
			if errors.As(err, &respErr) && respErr.StatusCode == http.StatusNotFound {
				return nil, ErrNotFound
			}
			return nil, err
		}
		for _, e := range resp.Entities {
			pos, task, err := decodeTaskEntity(e)
			if err != nil {
				return nil, err
			}
			rows = append(rows, positionedTask{pos: pos, task: task})
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].pos < rows[j].pos })
	return rows, nil
}

func (t *TableBackend) Load(ctx context.Context) ([]domain.Task, error) {
	rows, err := t.list(ctx)
	if err != nil {
		return nil, err
	}
	tasks := make([]domain.Task, len(rows))
	for i, r := range rows {
		tasks[i] = r.task
	}
	return tasks, nil
}

// Save upserts every task at its position and removes any other row in the
// partition, including rows whose key or body no longer decodes.
func (t *TableBackend) Save(ctx context.Context, tasks []domain.Task) error {
	keys, err := t.listRowKeys(ctx)
	if err != nil {
		return err
	}

	for i, task := range tasks {
		payload, err := encodeTaskEntity(i, task)
		if err != nil {
			return fmt.Errorf("encode task %s: %w", task.ID, err)
		}
		if _, err := t.client.UpsertEntity(ctx, payload, &aztables.UpsertEntityOptions{UpdateMode: aztables.UpdateModeReplace}); err != nil {
			return fmt.Errorf("upsert task %s: %w", task.ID, err)
		}
	}
	for _, key := range staleRowKeys(keys, len(tasks)) {
		if _, err := t.client.DeleteEntity(ctx, tablePartition, key, nil); err != nil {
			return fmt.Errorf("delete row %s: %w", key, err)
		}
	}
	return nil
}

// listRowKeys returns the row keys of the partition without reading bodies.
func (t *TableBackend) listRowKeys(ctx context.Context) ([]string, error) {
	filter := "PartitionKey eq '" + tablePartition + "'"
	sel := "RowKey"
	pager := t.client.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter, Select: &sel})
	var keys []string
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			var respErr *azcore.ResponseError
			if errors.As(err, &respErr) && respErr.StatusCode == http.StatusNotFound {
				return nil, nil
			}
			return nil, err
		}
		for _, e := range resp.Entities {
			var row struct {
				RowKey string `json:"RowKey"`
			}
			if err := sonic.Unmarshal(e, &row); err != nil {
				return nil, fmt.Errorf("decode row key: %w", err)
			}
			keys = append(keys, row.RowKey)
		}
	}
	return keys, nil
}

// staleRowKeys returns the keys that are not one of the n positions written
// by a save.
func staleRowKeys(keys []string, n int) []string {
	keep := make(map[string]struct{}, n)
	for i := 0; i < n; i++ {
		keep[tableRowKey(i)] = struct{}{}
	}
	var stale []string
	for _, k := range keys {
		if _, ok := keep[k]; !ok {
			stale = append(stale, k)
		}
	}
	return stale
}
