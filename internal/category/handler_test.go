package category_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/frahmantamala/finance-tracker/internal/cache"
	"github.com/frahmantamala/finance-tracker/internal/category"
	categoryPostgres "github.com/frahmantamala/finance-tracker/internal/category/postgres"
	"github.com/frahmantamala/finance-tracker/internal/core/datamodel"
	transactionDatamodel "github.com/frahmantamala/finance-tracker/internal/core/datamodel/transaction"
	"github.com/frahmantamala/finance-tracker/internal/transport"
	"github.com/shopspring/decimal"
)

type envelope struct {
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data"`
	FromCache *bool           `json:"fromCache"`
	Error     *struct {
		Code string `json:"code"`
	} `json:"error"`
}

var _ = Describe("Category Handler Integration", func() {
	var (
		db      *gorm.DB
		repo    category.RepositoryAPI
		handler *category.Handler
		router  chi.Router
		slogger *slog.Logger
	)

	BeforeEach(func() {
		var err error
		slogger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

		db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		Expect(err).NotTo(HaveOccurred())
		sqlDB, err := db.DB()
		Expect(err).NotTo(HaveOccurred())
		sqlDB.SetMaxOpenConns(1)
		DeferCleanup(sqlDB.Close)

		Expect(db.AutoMigrate(datamodel.Models()...)).To(Succeed())

		store := cache.NewMemoryStore(time.Minute)
		DeferCleanup(store.Close)

		repo = categoryPostgres.NewCategoryRepository(db)
		service := category.NewService(repo, cache.NewOrchestrator(store), time.Hour, nil, slogger)
		handler = &category.Handler{BaseHandler: transport.NewBaseHandler(slogger), Service: service}

		router = chi.NewRouter()
		router.Get("/categories", handler.GetCategories)
		router.Post("/categories", handler.CreateCategory)
		router.Get("/categories/{id}", handler.GetCategory)
		router.Put("/categories/{id}", handler.UpdateCategory)
		router.Delete("/categories/{id}", handler.DeleteCategory)

		for _, c := range []*category.Category{
			category.NewCategory("Salary", category.KindIncome, "#10B981", nil),
			category.NewCategory("Food", category.KindExpense, "#EF4444", nil),
		} {
			Expect(repo.Create(context.Background(), category.ToDataModel(c))).To(Succeed())
		}
	})

	do := func(method, target, body string) (*httptest.ResponseRecorder, envelope) {
		req := httptest.NewRequest(method, target, strings.NewReader(body))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		var env envelope
		Expect(json.Unmarshal(w.Body.Bytes(), &env)).To(Succeed())
		return w, env
	}

	It("should handle GET /categories request successfully", func() {
		w, env := do(http.MethodGet, "/categories", "")
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Header().Get("Content-Type")).To(ContainSubstring("application/json"))
		Expect(*env.FromCache).To(BeFalse())

		var categories []category.Category
		Expect(json.Unmarshal(env.Data, &categories)).To(Succeed())
		Expect(categories).To(HaveLen(2))
		Expect(categories[0].Name).To(Equal("Food"))

		_, env = do(http.MethodGet, "/categories", "")
		Expect(*env.FromCache).To(BeTrue())
	})

	It("should filter by type", func() {
		_, env := do(http.MethodGet, "/categories?type=income", "")
		var categories []category.Category
		Expect(json.Unmarshal(env.Data, &categories)).To(Succeed())
		Expect(categories).To(HaveLen(1))
		Expect(categories[0].Name).To(Equal("Salary"))
	})

	It("should create and fetch a category", func() {
		w, env := do(http.MethodPost, "/categories", `{"name":"Travel","type":"expense"}`)
		Expect(w.Code).To(Equal(http.StatusCreated))
		var created category.Category
		Expect(json.Unmarshal(env.Data, &created)).To(Succeed())
		Expect(created.Color).To(Equal("#3B82F6"))

		w, _ = do(http.MethodGet, "/categories/3", "")
		Expect(w.Code).To(Equal(http.StatusOK))
	})

	It("should return 409 for duplicates", func() {
		w, env := do(http.MethodPost, "/categories", `{"name":"Food","type":"expense"}`)
		Expect(w.Code).To(Equal(http.StatusConflict))
		Expect(env.Error.Code).To(Equal("DUPLICATE_CATEGORY"))
	})

	It("should return 409 when deleting a category in use", func() {
		food := int64(2)
		Expect(db.Create(&transactionDatamodel.Transaction{
			UserID: 1, Type: category.KindExpense, Amount: decimal.NewFromInt(5),
			Date: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), CategoryID: &food,
		}).Error).To(Succeed())

		w, env := do(http.MethodDelete, "/categories/2", "")
		Expect(w.Code).To(Equal(http.StatusConflict))
		Expect(env.Error.Code).To(Equal("CATEGORY_IN_USE"))

		w, _ = do(http.MethodDelete, "/categories/1", "")
		Expect(w.Code).To(Equal(http.StatusOK))
	})

	It("should return 404 for a missing category", func() {
		w, env := do(http.MethodPut, "/categories/99", `{"color":"#000000"}`)
		Expect(w.Code).To(Equal(http.StatusNotFound))
		Expect(env.Error.Code).To(Equal("CATEGORY_NOT_FOUND"))
	})
})
