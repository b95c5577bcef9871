package cms

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/leadlens/internal/model"
)

var profileValidator = validator.New()

// ProfilePayload is the admin upsert body. The three list-valued fields carry
// JSON-encoded arrays, matching how the proxy serves them.
type ProfilePayload struct {
	VisitorID        string `json:"visitor_id" validate:"required,max=64"`
	FirstName        string `json:"first_name" validate:"max=100"`
	CompanyShort     string `json:"company_short" validate:"max=200"`
	OrganizationName string `json:"organization_name" validate:"max=200"`
	LogoURL          string `json:"logo_url" validate:"omitempty,url,max=500"`
	WebsiteURL       string `json:"website_url" validate:"omitempty,url,max=500"`
	CompanyOverview  string `json:"company_overview" validate:"max=2000"`
	USP              string `json:"usp" validate:"max=2000"`
	FounderBio       string `json:"founder_bio" validate:"max=2000"`
	KeyChallenge     string `json:"key_challenge" validate:"max=2000"`
	CoreServices     string `json:"core_services" validate:"omitempty,json,max=2000"`
	KPIs             string `json:"kpis" validate:"omitempty,json,max=4000"`
	ResearchReport   string `json:"research_report" validate:"max=8000"`
	EngagementSeries string `json:"engagement_series" validate:"omitempty,json,max=1000"`
}

func (payload ProfilePayload) toProfile(visitorID string) model.VisitorProfile {
	return model.VisitorProfile{
		VisitorID:        visitorID,
		FirstName:        payload.FirstName,
		CompanyShort:     payload.CompanyShort,
		OrganizationName: payload.OrganizationName,
		LogoURL:          payload.LogoURL,
		WebsiteURL:       payload.WebsiteURL,
		CompanyOverview:  payload.CompanyOverview,
		USP:              payload.USP,
		FounderBio:       payload.FounderBio,
		KeyChallenge:     payload.KeyChallenge,
		CoreServices:     payload.CoreServices,
		KPIs:             payload.KPIs,
		ResearchReport:   payload.ResearchReport,
		EngagementSeries: payload.EngagementSeries,
	}
}

// HandleUpsertProfile creates or replaces one visitor profile.
func (handlers *Handlers) HandleUpsertProfile(ginContext *gin.Context) {
	var payload ProfilePayload
	if bindErr := ginContext.ShouldBindJSON(&payload); bindErr != nil {
		ginContext.JSON(http.StatusBadRequest, gin.H{"error": "invalid json body"})
		return
	}
	if validateErr := profileValidator.Struct(payload); validateErr != nil {
		ginContext.JSON(http.StatusBadRequest, gin.H{"error": validateErr.Error()})
		return
	}
	visitorID, normalizeErr := model.NormalizeVisitorID(payload.VisitorID)
	if normalizeErr != nil {
		ginContext.JSON(http.StatusBadRequest, gin.H{"error": messageInvalidVisitorID})
		return
	}

	profile := payload.toProfile(visitorID)
	saveErr := handlers.database.WithContext(ginContext.Request.Context()).
		Where("visitor_id = ?", visitorID).
		Assign(profile).
		FirstOrCreate(&profile).Error
	if saveErr != nil {
		handlers.logger.Error("profile_upsert_failed", zap.String("visitor_id", visitorID), zap.Error(saveErr))
		ginContext.JSON(http.StatusInternalServerError, gin.H{"error": "profile save failed"})
		return
	}
	ginContext.JSON(http.StatusOK, gin.H{"visitor_id": visitorID})
}

// HandleListProfiles returns every stored profile ordered by identifier.
func (handlers *Handlers) HandleListProfiles(ginContext *gin.Context) {
	var profiles []model.VisitorProfile
	listErr := handlers.database.WithContext(ginContext.Request.Context()).
		Order("visitor_id asc").
		Find(&profiles).Error
	if listErr != nil {
		handlers.logger.Error("profile_list_failed", zap.Error(listErr))
		ginContext.JSON(http.StatusInternalServerError, gin.H{"error": "profile list failed"})
		return
	}
	ginContext.JSON(http.StatusOK, gin.H{"profiles": profiles})
}

// HandleDeleteProfile removes one profile; deleting an absent profile is not
// an error.
func (handlers *Handlers) HandleDeleteProfile(ginContext *gin.Context) {
	visitorID, normalizeErr := model.NormalizeVisitorID(ginContext.Param("visitor_id"))
	if normalizeErr != nil {
		ginContext.JSON(http.StatusBadRequest, gin.H{"error": messageInvalidVisitorID})
		return
	}
	deleteErr := handlers.database.WithContext(ginContext.Request.Context()).
		Where("visitor_id = ?", visitorID).
		Delete(&model.VisitorProfile{}).Error
	if deleteErr != nil {
		handlers.logger.Error("profile_delete_failed", zap.String("visitor_id", visitorID), zap.Error(deleteErr))
		ginContext.JSON(http.StatusInternalServerError, gin.H{"error": "profile delete failed"})
		return
	}
	ginContext.Status(http.StatusNoContent)
}

type fetchStatsRow struct {
	VisitorID  string `json:"visitor_id"`
	FetchCount int64  `json:"fetch_count"`
	FoundCount int64  `json:"found_count"`
}

// HandleFetchStats reports aggregated fetch counts from the daily rollups,
// optionally filtered to one visitor via ?visitor_id=.
func (handlers *Handlers) HandleFetchStats(ginContext *gin.Context) {
	query := handlers.database.WithContext(ginContext.Request.Context()).
		Model(&model.RecordFetchRollup{}).
		Select("visitor_id, SUM(fetch_count) AS fetch_count, SUM(found_count) AS found_count").
		Group("visitor_id").
		Order("visitor_id asc")
	if filterID := ginContext.Query("visitor_id"); filterID != "" {
		visitorID, normalizeErr := model.NormalizeVisitorID(filterID)
		if normalizeErr != nil {
			ginContext.JSON(http.StatusBadRequest, gin.H{"error": messageInvalidVisitorID})
			return
		}
		query = query.Where("visitor_id = ?", visitorID)
	}

	var rows []fetchStatsRow
	if scanErr := query.Scan(&rows).Error; scanErr != nil {
		handlers.logger.Error("fetch_stats_failed", zap.Error(scanErr))
		ginContext.JSON(http.StatusInternalServerError, gin.H{"error": "fetch stats failed"})
		return
	}
	ginContext.JSON(http.StatusOK, gin.H{"stats": rows})
}
