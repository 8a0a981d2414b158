package dto

import (
	"time"

	"github.com/noah-isme/taxdesk-api/internal/models"
)

// AdminDashboardResponse is the admin dashboard aggregate.
type AdminDashboardResponse struct {
	TotalPosts  int               `json:"totalPosts"`
	TotalUsers  int               `json:"totalUsers"`
	Posts       []models.BlogPost `json:"posts"`
	GeneratedAt time.Time         `json:"generatedAt"`
}

// DashboardExportQuery selects the export format.
type DashboardExportQuery struct {
	Format string `form:"format"`
}
