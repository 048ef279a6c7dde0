package controllers_test

import (
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cirm-data/portal/modules/funding"
	"github.com/cirm-data/portal/modules/funding/domain/cirm"
	"github.com/cirm-data/portal/modules/funding/presentation/controllers"
	"github.com/cirm-data/portal/modules/funding/services"
	"github.com/cirm-data/portal/pkg/itf"
)

const baselineDocument = `{
  "updateDate": "2024-01-15",
  "grants": [
    {"programType": "Discovery", "grantType": "DISC1", "icocApproval": "2023-06-01",
     "totalAwards": 4, "awardValue": 2500000, "awardStatus": "Active"},
    {"programType": "Clinical", "grantType": "CLIN2", "icocApproval": "2022-11-15",
     "totalAwards": 3, "awardValue": 9000000, "awardStatus": "Closed"}
  ],
  "activeGrants": [
    {"grantNumber": "DISC1-00042", "programType": "Discovery", "grantType": "DISC1",
     "grantTitle": "Retinal progenitor models", "principalInvestigator": "A. Rivera",
     "awardValue": 1400000, "icocApproval": "2023-06-01", "awardStatus": "Active"},
    {"grantNumber": "CLIN2-00007", "programType": "Clinical", "grantType": "CLIN2",
     "grantTitle": "Phase II safety trial", "principalInvestigator": "B. Chen",
     "awardValue": 5200000, "icocApproval": "2022-11-15", "awardStatus": "Active"}
  ],
  "papers": [
    {"title": "Retinal sheet engraftment", "researchTopic": "Vision",
     "authors": "Rivera A; Chen B", "publication": "Cell Reports",
     "grantNumber": "DISC1-00042", "grantType": "DISC1", "programType": "Discovery",
     "awardStatus": "Active"}
  ]
}`

func newFundingSuite(t *testing.T) *itf.Suite {
	t.Helper()
	suite := itf.HTTP(t, funding.NewModule(funding.WithMemoryRepositories()))
	suite.Register(controllers.NewFundingAPIController(suite.Env().App))
	return suite
}

func establishBaseline(t *testing.T, suite *itf.Suite) *services.ImportSummary {
	t.Helper()
	var sum services.ImportSummary
	suite.POST("/api/funding/data").
		RawBody([]byte(baselineDocument), "application/json").
		Expect(t).
		Status(http.StatusOK).
		JSON(&sum)
	require.NotEmpty(t, sum.ChangeID)
	return &sum
}

func TestFundingAPI_ReplaceDataEstablishesBaseline(t *testing.T) {
	t.Parallel()

	suite := newFundingSuite(t)
	sum := establishBaseline(t, suite)

	require.Equal(t, services.AddedCounts{Grants: 2, ActiveGrants: 2, Papers: 1}, sum.Added)
	require.Equal(t, 7, sum.Summary.TotalProjects)
	require.Equal(t, 11500000.0, sum.Summary.TotalAmount)
	require.Equal(t, 4, sum.Summary.ActiveProjects)

	var data cirm.Data
	suite.GET("/api/funding/data").Expect(t).Status(http.StatusOK).JSON(&data)
	require.Len(t, data.Grants, 2)
	require.Equal(t, 1, data.Grants[0].ID)
	require.Equal(t, 2, data.Grants[1].ID)
	require.Equal(t, sum.UpdateDate, data.UpdateDate)
}

func TestFundingAPI_SummaryAndStats(t *testing.T) {
	t.Parallel()

	suite := newFundingSuite(t)
	establishBaseline(t, suite)

	var summaryResp struct {
		Summary    cirm.Summary `json:"summary"`
		UpdateDate string       `json:"updateDate"`
	}
	suite.GET("/api/funding/summary").Expect(t).Status(http.StatusOK).JSON(&summaryResp)
	require.Equal(t, 2, summaryResp.Summary.TotalGrants)
	require.NotEmpty(t, summaryResp.UpdateDate)

	var statsResp struct {
		ProgramStats map[string]cirm.StatEntry `json:"programStats"`
		YearlyStats  map[string]cirm.StatEntry `json:"yearlyStats"`
	}
	suite.GET("/api/funding/stats").Expect(t).Status(http.StatusOK).JSON(&statsResp)
	require.Equal(t, cirm.StatEntry{Projects: 1, Amount: 1400000}, statsResp.ProgramStats["Discovery"])
	require.Equal(t, cirm.StatEntry{Projects: 1, Amount: 5200000}, statsResp.YearlyStats["2022"])
}

func TestFundingAPI_ImportCSVUpload(t *testing.T) {
	t.Parallel()

	suite := newFundingSuite(t)
	establishBaseline(t, suite)

	csv := strings.Join([]string{
		"title,researchTopic,authors,publication",
		"Progenitor viability assay,Vision,Rivera A,Stem Cell Reports",
		",Vision,No Title,",
	}, "\n") + "\n"

	var sum services.ImportSummary
	suite.POST("/api/funding/import").
		File("file", "papers.csv", []byte(csv)).
		Expect(t).
		Status(http.StatusOK).
		JSON(&sum)

	require.Equal(t, services.AddedCounts{Papers: 1}, sum.Added)
	require.Equal(t, 1, sum.SkippedRows)
	require.Equal(t, 2, sum.Summary.TotalPapers)
}

func TestFundingAPI_ImportRejectsUnknownExtension(t *testing.T) {
	t.Parallel()

	suite := newFundingSuite(t)
	resp := suite.POST("/api/funding/import").
		File("file", "records.txt", []byte("plain text")).
		Expect(t).
		Status(http.StatusUnsupportedMediaType)

	require.Equal(t, "application/json", resp.Header("Content-Type"))
	require.Equal(t, "en", resp.Header("Content-Language"))
	resp.Contains(`"code":"UNSUPPORTED_FORMAT"`).
		Contains("Unsupported file format")
}

// A malformed body must come back as the JSON envelope, not a plain-text 400
// from a middleware layer.
func TestFundingAPI_ImportMalformedJSONAnswersEnvelope(t *testing.T) {
	t.Parallel()

	suite := newFundingSuite(t)
	resp := suite.POST("/api/funding/import").
		File("file", "data.json", []byte("{not json")).
		Expect(t).
		Status(http.StatusUnprocessableEntity)

	require.Equal(t, "application/json", resp.Header("Content-Type"))
	resp.Contains(`"code":"PARSE_FAILURE"`)
}

func TestFundingAPI_ReplaceDataRejectsStructurelessDocument(t *testing.T) {
	t.Parallel()

	suite := newFundingSuite(t)
	suite.POST("/api/funding/data").
		RawBody([]byte(`{"summary": {}}`), "application/json").
		Expect(t).
		Status(http.StatusUnprocessableEntity).
		Contains(`"code":"INVALID_STRUCTURE"`)
}

func TestFundingAPI_ExportJSON(t *testing.T) {
	t.Parallel()

	suite := newFundingSuite(t)
	establishBaseline(t, suite)

	resp := suite.GET("/api/funding/export?format=json").Expect(t).Status(http.StatusOK)
	require.Equal(t, "application/json", resp.Header("Content-Type"))

	disposition := resp.Header("Content-Disposition")
	require.Contains(t, disposition, `attachment; filename="cirm-data-`)
	require.Contains(t, disposition, `.json"`)
	resp.Contains("DISC1-00042")
}

func TestFundingAPI_ExportUnknownFormat(t *testing.T) {
	t.Parallel()

	suite := newFundingSuite(t)
	establishBaseline(t, suite)

	suite.GET("/api/funding/export?format=pdf").
		Expect(t).
		Status(http.StatusUnsupportedMediaType).
		Contains(`"code":"UNSUPPORTED_FORMAT"`)
}

func TestFundingAPI_EditActiveGrant(t *testing.T) {
	t.Parallel()

	suite := newFundingSuite(t)
	establishBaseline(t, suite)

	var res services.EditResult
	suite.PATCH("/api/funding/active-grants/DISC1-00042").
		RawBody([]byte(`{"awardValue": 1500000}`), "application/json").
		Expect(t).
		Status(http.StatusOK).
		JSON(&res)
	require.NotEmpty(t, res.ChangeID)

	store := itf.GetService[services.DataStore](suite.Env())
	data, err := store.Get(suite.Env().Ctx)
	require.NoError(t, err)
	require.Equal(t, 1500000.0, data.ActiveGrants[0].AwardValue)
}

func TestFundingAPI_EditCannotBlankGrantNumber(t *testing.T) {
	t.Parallel()

	suite := newFundingSuite(t)
	establishBaseline(t, suite)

	suite.PATCH("/api/funding/active-grants/DISC1-00042").
		RawBody([]byte(`{"grantNumber": ""}`), "application/json").
		Expect(t).
		Status(http.StatusUnprocessableEntity).
		Contains(`"code":"VALIDATION_ERROR"`).
		Contains("field.GrantNumber")
}

func TestFundingAPI_EditUnknownRecord(t *testing.T) {
	t.Parallel()

	suite := newFundingSuite(t)
	establishBaseline(t, suite)

	suite.PATCH("/api/funding/active-grants/TRAN9-99999").
		RawBody([]byte(`{"awardValue": 1}`), "application/json").
		Expect(t).
		Status(http.StatusNotFound).
		Contains(`"code":"NOT_FOUND"`)
}

func TestFundingAPI_ChangesAndRollback(t *testing.T) {
	t.Parallel()

	suite := newFundingSuite(t)
	establishBaseline(t, suite)

	var edit services.EditResult
	suite.PATCH("/api/funding/active-grants/DISC1-00042").
		RawBody([]byte(`{"awardValue": 1500000}`), "application/json").
		Expect(t).
		Status(http.StatusOK).
		JSON(&edit)

	var listResp struct {
		Changes []map[string]any `json:"changes"`
		Total   int64            `json:"total"`
	}
	suite.GET("/api/funding/changes?limit=10").Expect(t).Status(http.StatusOK).JSON(&listResp)
	require.EqualValues(t, 2, listResp.Total)
	// Most recent first.
	require.Equal(t, edit.ChangeID, listResp.Changes[0]["id"])

	suite.POST(fmt.Sprintf("/api/funding/changes/%s/rollback", edit.ChangeID)).
		Expect(t).
		Status(http.StatusOK)

	store := itf.GetService[services.DataStore](suite.Env())
	data, err := store.Get(suite.Env().Ctx)
	require.NoError(t, err)
	require.Equal(t, 1400000.0, data.ActiveGrants[0].AwardValue)
}

func TestFundingAPI_RollbackUnknownChange(t *testing.T) {
	t.Parallel()

	suite := newFundingSuite(t)
	establishBaseline(t, suite)

	suite.POST("/api/funding/changes/1700000000000-zzz/rollback").
		Expect(t).
		Status(http.StatusNotFound).
		Contains(`"code":"NOT_FOUND"`)
}

func TestFundingAPI_Search(t *testing.T) {
	t.Parallel()

	suite := newFundingSuite(t)
	establishBaseline(t, suite)

	var resp struct {
		Query string         `json:"query"`
		Hits  []services.Hit `json:"hits"`
	}
	suite.GET("/api/funding/search?q=retinal").Expect(t).Status(http.StatusOK).JSON(&resp)
	require.Equal(t, "retinal", resp.Query)
	require.NotEmpty(t, resp.Hits)

	entities := make(map[string]bool)
	for _, h := range resp.Hits {
		entities[h.Entity] = true
	}
	require.True(t, entities[cirm.EntityActiveGrant])
	require.True(t, entities[cirm.EntityPaper])
}

func TestFundingAPI_HealthOnEmptyStore(t *testing.T) {
	t.Parallel()

	suite := newFundingSuite(t)

	var health map[string]string
	suite.GET("/api/funding/health").Expect(t).Status(http.StatusOK).JSON(&health)
	require.Equal(t, "empty", health["dataset"])
	require.Equal(t, "off", health["database"])
}
