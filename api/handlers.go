package api

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"task-api/domain"
)

// Register wires up all API routes on the provided Echo instance. deduper
// and notifier may be nil.
func Register(e *echo.Echo, store Storage, deduper Deduper, notifier Notifier, logger *log.Logger) {
	if logger == nil {
		logger = log.StandardLogger()
	}
	e.GET("/", banner)
	e.GET("/healthz", healthz)
	e.GET("/api/tasks", listTasks(store, logger))
	e.POST("/api/tasks", createTask(store, deduper, notifier, logger))
}

func banner(c echo.Context) error {
	return c.String(http.StatusOK, bannerText)
}

func healthz(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}

func listTasks(store Storage, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		metrics, ctx := newTaskRequestMetrics(c.Request().Context(), logger, listTasksRoute)
		metrics.SetRequestID(c.Response().Header().Get(echo.HeaderXRequestID))
		status := http.StatusOK
		var cause error
		defer func() {
			metrics.Log(status, cause)
		}()

		fetchStart := time.Now()
		tasks, err := store.ListTasks(ctx)
		metrics.ObserveStorage(time.Since(fetchStart))
		if err != nil {
			metrics.SetErrorStage("storage")
			logger.WithError(err).Error("list tasks failed")
			status, cause = http.StatusInternalServerError, err
			return c.JSON(status, errorResponse{Error: msgLoadFailed})
		}
		if tasks == nil {
			tasks = []domain.Task{}
		}
		metrics.SetTasksReturned(len(tasks))

		encodeStart := time.Now()
		err = c.JSON(http.StatusOK, tasks)
		metrics.ObserveEncode(time.Since(encodeStart))
		if err != nil {
			metrics.SetErrorStage("encode_response")
			cause = err
		}
		return err
	}
}

var errBodyTooLarge = errors.New("request body too large")

// decodeCreateTask treats an empty body as an empty request so that it is
// reported by validation rather than as a decode failure.
func decodeCreateTask(body io.Reader) (createTaskRequest, error) {
	var req createTaskRequest
	data, err := io.ReadAll(io.LimitReader(body, postTaskMaxSize+1))
	if err != nil {
		return req, err
	}
	if len(data) > postTaskMaxSize {
		return req, errBodyTooLarge
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return req, nil
	}
	if err := sonic.ConfigStd.Unmarshal(data, &req); err != nil {
		return createTaskRequest{}, err
	}
	return req, nil
}

func createTask(store Storage, deduper Deduper, notifier Notifier, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		metrics, ctx := newTaskRequestMetrics(c.Request().Context(), logger, createTaskRoute)
		metrics.SetRequestID(c.Response().Header().Get(echo.HeaderXRequestID))
		status := http.StatusCreated
		var cause error
		defer func() {
			metrics.Log(status, cause)
		}()

		req, err := decodeCreateTask(c.Request().Body)
		if err != nil {
			metrics.SetErrorStage("decode")
			status = http.StatusBadRequest
			return c.JSON(status, errorResponse{Error: msgInvalidBody})
		}

		if err := validateCreateTask(&req); err != nil {
			var verr *ValidationError
			if !errors.As(err, &verr) {
				metrics.SetErrorStage("validation")
				status, cause = http.StatusInternalServerError, err
				return c.JSON(status, errorResponse{Error: msgSaveFailed})
			}
			metrics.SetErrorStage("validation")
			status = http.StatusBadRequest
			return c.JSON(status, errorResponse{Error: verr.Message})
		}

		key := c.Request().Header.Get(headerIdempotencyKey)
		recorded := false
		if deduper != nil && key != "" {
			added, err := deduper.Add(ctx, key)
			switch {
			case err != nil:
				logger.WithError(err).WithField("idempotency_key", key).Warn("deduper unavailable, accepting request")
			case !added:
				metrics.SetErrorStage("duplicate")
				status = http.StatusConflict
				return c.JSON(status, errorResponse{Error: msgDuplicate})
			default:
				recorded = true
			}
		}

		task := domain.NewTask(newTaskID(), req.Title, req.Description, domain.Priority(req.Priority), time.Now())
		metrics.SetTaskID(task.ID)

		saveStart := time.Now()
		err = store.AppendTask(ctx, task)
		metrics.ObserveStorage(time.Since(saveStart))
		if err != nil {
			if recorded {
				if rerr := deduper.Remove(context.WithoutCancel(ctx), key); rerr != nil {
					logger.WithError(rerr).WithField("idempotency_key", key).Error("dedupe rollback failed")
				}
			}
			metrics.SetErrorStage("storage")
			logger.WithError(err).WithField("task_id", task.ID).Error("create task failed")
			status, cause = http.StatusInternalServerError, err
			return c.JSON(status, errorResponse{Error: msgSaveFailed})
		}

		if notifier != nil {
			if nerr := notifier.TaskCreated(ctx, task); nerr != nil {
				logger.WithError(nerr).WithField("task_id", task.ID).Error("task created notification failed")
			}
		}

		encodeStart := time.Now()
		err = c.JSON(http.StatusCreated, task)
		metrics.ObserveEncode(time.Since(encodeStart))
		if err != nil {
			metrics.SetErrorStage("encode_response")
			cause = err
		}
		return err
	}
}
