package services

import (
	"math"

	"gorm.io/gorm"

	"taskory/models"
)

// ComputeProgress derives a 0-100 completion estimate.
//
// When estimated hours exist, progress is the logged/estimated ratio capped
// at 100. Otherwise it falls back to the completed/total item ratio, or 0
// when there is nothing to measure.
func ComputeProgress(loggedHours, estimatedHours float64, completed, total int) int {
	if estimatedHours > 0 {
		p := math.Round(100 * loggedHours / estimatedHours)
		if p > 100 {
			return 100
		}
		return int(p)
	}
	if total > 0 {
		return int(math.Round(100 * float64(completed) / float64(total)))
	}
	return 0
}

// ProjectProgress recomputes a project's progress from its tasks and time
// logs. Pure read; persisting the result is the caller's write-behind step.
func ProjectProgress(db *gorm.DB, projectID uint) (int, error) {
	var estimated, logged float64
	var total, completed int64

	if err := db.Model(&models.Task{}).
		Where("project_id = ?", projectID).
		Select("COALESCE(SUM(estimated_hours), 0)").
		Scan(&estimated).Error; err != nil {
		return 0, err
	}
	if err := db.Model(&models.TimeLog{}).
		Where("project_id = ?", projectID).
		Select("COALESCE(SUM(hours_spent), 0)").
		Scan(&logged).Error; err != nil {
		return 0, err
	}
	if err := db.Model(&models.Task{}).
		Where("project_id = ?", projectID).
		Count(&total).Error; err != nil {
		return 0, err
	}
	if err := db.Model(&models.Task{}).
		Where("project_id = ? AND status = ?", projectID, models.TaskStatusCompleted).
		Count(&completed).Error; err != nil {
		return 0, err
	}

	return ComputeProgress(logged, estimated, int(completed), int(total)), nil
}

// MilestoneProgress recomputes a milestone's completion from its child
// tasks' completion ratio.
func MilestoneProgress(db *gorm.DB, milestoneID uint) (int, error) {
	var total, completed int64

	if err := db.Model(&models.Task{}).
		Where("milestone_id = ?", milestoneID).
		Count(&total).Error; err != nil {
		return 0, err
	}
	if err := db.Model(&models.Task{}).
		Where("milestone_id = ? AND status = ?", milestoneID, models.TaskStatusCompleted).
		Count(&completed).Error; err != nil {
		return 0, err
	}

	return ComputeProgress(0, 0, int(completed), int(total)), nil
}

// SyncProjectProgress recomputes and persists a project's progress when the
// stored value is stale. Returns the fresh value.
func SyncProjectProgress(db *gorm.DB, project *models.Project) (int, error) {
	progress, err := ProjectProgress(db, project.ID)
	if err != nil {
		return project.ProgressPercentage, err
	}
	if progress != project.ProgressPercentage {
		if err := db.Model(project).Update("progress_percentage", progress).Error; err != nil {
			return project.ProgressPercentage, err
		}
		project.ProgressPercentage = progress
	}
	return progress, nil
}

// SyncMilestoneProgress recomputes and persists a milestone's completion
// when the stored value is stale. Returns the fresh value.
func SyncMilestoneProgress(db *gorm.DB, milestone *models.Milestone) (int, error) {
	progress, err := MilestoneProgress(db, milestone.ID)
	if err != nil {
		return milestone.CompletionPercentage, err
	}
	if progress != milestone.CompletionPercentage {
		if err := db.Model(milestone).Update("completion_percentage", progress).Error; err != nil {
			return milestone.CompletionPercentage, err
		}
		milestone.CompletionPercentage = progress
	}
	return progress, nil
}
