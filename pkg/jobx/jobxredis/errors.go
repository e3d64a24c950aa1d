package jobxredis

import (
	"net/http"

	"github.com/Abraxas-365/provisioning/pkg/errx"
)

var ErrRegistry = errx.NewRegistry("JOBX_REDIS")

var (
	CodeEnqueue   = ErrRegistry.Register("ENQUEUE", errx.TypeExternal, http.StatusBadGateway, "Redis enqueue failed")
	CodeDequeue   = ErrRegistry.Register("DEQUEUE", errx.TypeExternal, http.StatusBadGateway, "Redis dequeue failed")
	CodeGetJob    = ErrRegistry.Register("GET_JOB", errx.TypeExternal, http.StatusBadGateway, "Redis get job failed")
	CodeSave      = ErrRegistry.Register("SAVE", errx.TypeExternal, http.StatusBadGateway, "Redis job update failed")
	CodeRetry     = ErrRegistry.Register("RETRY", errx.TypeExternal, http.StatusBadGateway, "Redis retry failed")
	CodePromote   = ErrRegistry.Register("PROMOTE", errx.TypeExternal, http.StatusBadGateway, "Redis promote failed")
	CodeNotFound  = ErrRegistry.Register("NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "Job not found in Redis")
	CodeMarshal   = ErrRegistry.Register("MARSHAL", errx.TypeInternal, http.StatusInternalServerError, "Failed to marshal job data")
	CodeUnmarshal = ErrRegistry.Register("UNMARSHAL", errx.TypeInternal, http.StatusInternalServerError, "Failed to unmarshal job data")
)
