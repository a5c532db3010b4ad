package dedup

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/haneulsoft/hakwon-api/services"
	"github.com/haneulsoft/hakwon-api/utils/middleware"
	"github.com/haneulsoft/hakwon-api/utils/response"
	"github.com/haneulsoft/hakwon-api/utils/validation"
)

// DedupHandler handles duplicate scan, selection and merge requests.
// All routes are admin-only.
type DedupHandler struct {
	validator       *validation.Validator
	dedupService    *services.DedupService
	mergeJobService *services.MergeJobService
}

// NewDedupHandler creates a new dedup handler
func NewDedupHandler(dedupService *services.DedupService, mergeJobService *services.MergeJobService) *DedupHandler {
	return &DedupHandler{
		validator:       validation.NewValidator(),
		dedupService:    dedupService,
		mergeJobService: mergeJobService,
	}
}

// StartMergeRequest represents the request body for launching a merge
type StartMergeRequest struct {
	// ConfirmGroups must equal the number of currently selected groups. This
	// forces the client to show the admin what is about to be merged.
	ConfirmGroups int `json:"confirm_groups" validate:"required,min=1"`
}

// Scan handles GET /api/v1/admin/dedup/scan
// Pass force=true to rescan instead of serving the cached result.
func (h *DedupHandler) Scan(c *fiber.Ctx) error {
	force := c.Query("force", "") == "true"

	state, err := h.dedupService.Scan(c.Context(), force)
	if err != nil {
		return response.InternalServerError(c, "Failed to scan for duplicates: "+err.Error())
	}

	return response.Success(c, fiber.Map{
		"scanned_at":        state.ScannedAt,
		"total_students":    state.TotalStudents,
		"total_groups":      len(state.Selection.Groups),
		"duplicate_records": state.DuplicateRecords(),
		"selection":         state.Selection,
	})
}

// UpdateSelection handles POST /api/v1/admin/dedup/selection
func (h *DedupHandler) UpdateSelection(c *fiber.Ctx) error {
	var op services.SelectionOp
	if err := c.BodyParser(&op); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if err := h.validator.ValidateStruct(op); err != nil {
		return response.ValidationError(c, err)
	}

	state, err := h.dedupService.UpdateSelection(c.Context(), op)
	if err != nil {
		if errors.Is(err, services.ErrScanNotFound) {
			return response.NotFound(c, "No duplicate scan available. Run a scan first.")
		}
		return response.BadRequest(c, err.Error())
	}

	return response.Success(c, fiber.Map{
		"selected_groups": state.Selection.SelectedCount(),
		"selection":       state.Selection,
	})
}

// StartMerge handles POST /api/v1/admin/dedup/merge
func (h *DedupHandler) StartMerge(c *fiber.Ctx) error {
	var req StartMergeRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	result, err := h.mergeJobService.StartMerge(c.Context(), services.StartMergeRequest{
		UserID:        userID,
		ConfirmGroups: req.ConfirmGroups,
	})
	if err != nil {
		if errors.Is(err, services.ErrScanNotFound) {
			return response.NotFound(c, "No duplicate scan available. Run a scan first.")
		}
		return response.BadRequest(c, err.Error())
	}

	return response.Created(c, result)
}

// ListJobs handles GET /api/v1/admin/merge-jobs
func (h *DedupHandler) ListJobs(c *fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit", "20"))

	jobs, err := h.mergeJobService.ListJobs(c.Context(), limit)
	if err != nil {
		return response.InternalServerError(c, "Failed to fetch merge jobs")
	}

	return response.Success(c, jobs)
}

// GetJob handles GET /api/v1/admin/merge-jobs/:id
func (h *DedupHandler) GetJob(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid job ID")
	}

	job, err := h.mergeJobService.GetJob(c.Context(), uint(id))
	if err != nil {
		return response.NotFound(c, "Merge job not found")
	}

	return response.Success(c, fiber.Map{
		"job":      job,
		"progress": job.GetProgress(),
	})
}

// GetGroupSnapshot handles GET /api/v1/admin/merge-jobs/:id/groups/:group_id/snapshot
// Returns the archived pre-merge records of one group. With ?presign=true it
// returns a short-lived download URL instead of the snapshot body.
func (h *DedupHandler) GetGroupSnapshot(c *fiber.Ctx) error {
	jobID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid job ID")
	}
	groupID, err := strconv.ParseUint(c.Params("group_id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid group ID")
	}

	if c.Query("presign", "") == "true" {
		url, expiresIn, err := h.mergeJobService.GroupSnapshotURL(c.Context(), uint(jobID), uint(groupID))
		if err != nil {
			if errors.Is(err, services.ErrSnapshotUnavailable) {
				return response.NotFound(c, "No snapshot archived for this group")
			}
			return response.InternalServerError(c, "Failed to presign snapshot")
		}
		return response.Success(c, fiber.Map{
			"url":                url,
			"expires_in_seconds": int(expiresIn.Seconds()),
		})
	}

	snapshot, err := h.mergeJobService.GroupSnapshot(c.Context(), uint(jobID), uint(groupID))
	if err != nil {
		if errors.Is(err, services.ErrSnapshotUnavailable) {
			return response.NotFound(c, "No snapshot archived for this group")
		}
		return response.InternalServerError(c, "Failed to fetch snapshot")
	}

	return response.Success(c, fiber.Map{"snapshot": snapshot})
}

// CancelJob handles POST /api/v1/admin/merge-jobs/:id/cancel
// Cancellation stops processing further groups; groups already merged stay
// merged.
func (h *DedupHandler) CancelJob(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid job ID")
	}

	if err := h.mergeJobService.CancelJob(c.Context(), uint(id)); err != nil {
		return response.BadRequest(c, err.Error())
	}

	return response.Success(c, fiber.Map{
		"message": "Merge job cancellation requested",
	})
}
