package estoque

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) (*chi.Mux, *Service) {
	t.Helper()
	repo := newMemRepo()
	service := NewService(repo, NewDerivedRegistry(repo), nil, nil)
	r := chi.NewRouter()
	NewHandler(nil, service).MountRoutes(r)
	return r, service
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeErr(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body.Error
}

func TestHandlerCreateAndGetProduct(t *testing.T) {
	router, service := newTestRouter(t)
	_, err := service.CreateGroup(context.Background(), "Elétrica")
	require.NoError(t, err)

	rec := doJSON(t, router, http.MethodPost, "/estoque", map[string]any{
		"codigo_fornecedor": "F-001",
		"marca":             "Tramontina",
		"descricao":         "Fita isolante",
		"quantidade":        5,
		"valor_unitario":    12.5,
		"grupo_nome":        "Elétrica",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created Product
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))
	require.Equal(t, int64(1), created.Codigo)
	require.Equal(t, "TRAMONTINA", created.Marca)

	rec = doJSON(t, router, http.MethodGet, "/estoque/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/estoque/desconhecido", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "Produto não encontrado", decodeErr(t, rec))
}

func TestHandlerCreateProductValidation(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/estoque", map[string]any{
		"marca": "Tramontina",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "Todos os campos obrigatórios devem ser preenchidos", decodeErr(t, rec))
}

func TestHandlerDuplicateSupplierCode(t *testing.T) {
	router, service := newTestRouter(t)
	_, err := service.CreateGroup(context.Background(), "Elétrica")
	require.NoError(t, err)

	body := map[string]any{
		"codigo_fornecedor": "F-001",
		"marca":             "Tramontina",
		"descricao":         "Fita isolante",
		"quantidade":        0,
		"valor_unitario":    1.0,
		"grupo_nome":        "Elétrica",
	}
	rec := doJSON(t, router, http.MethodPost, "/estoque", body)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/estoque", body)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "Código do fornecedor já cadastrado", decodeErr(t, rec))
}

func TestHandlerMovementEndpoint(t *testing.T) {
	router, service := newTestRouter(t)
	ctx := context.Background()
	grupo, err := service.CreateGroup(ctx, "Elétrica")
	require.NoError(t, err)
	p, err := service.CreateProduct(ctx, createInput("F-001", grupo, 10))
	require.NoError(t, err)

	rec := doJSON(t, router, http.MethodPost, "/estoque/"+p.ID+"/movimentar", map[string]any{
		"tipo":       "saida",
		"quantidade": 4,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var updated Product
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&updated))
	require.Equal(t, int64(6), updated.Quantidade)

	rec = doJSON(t, router, http.MethodPost, "/estoque/"+p.ID+"/movimentar", map[string]any{
		"tipo":       "saida",
		"quantidade": 7,
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "Quantidade insuficiente em estoque", decodeErr(t, rec))

	rec = doJSON(t, router, http.MethodPost, "/estoque/"+p.ID+"/movimentar", map[string]any{
		"tipo":       "ajuste",
		"quantidade": 1,
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerListProducts(t *testing.T) {
	router, service := newTestRouter(t)
	ctx := context.Background()
	grupo, err := service.CreateGroup(ctx, "Elétrica")
	require.NoError(t, err)
	for _, code := range []string{"F-001", "F-002", "F-003"} {
		_, err := service.CreateProduct(ctx, createInput(code, grupo, 1))
		require.NoError(t, err)
	}

	rec := doJSON(t, router, http.MethodGet, "/estoque?page=2&limit=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ProductListResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, 3, resp.Total)
	require.Equal(t, 2, resp.Page)
	require.Equal(t, 2, resp.TotalPages)
	require.Len(t, resp.Data, 1)

	rec = doJSON(t, router, http.MethodHead, "/estoque", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestHandlerDeleteProduct(t *testing.T) {
	router, service := newTestRouter(t)
	ctx := context.Background()
	grupo, err := service.CreateGroup(ctx, "Elétrica")
	require.NoError(t, err)
	p, err := service.CreateProduct(ctx, createInput("F-001", grupo, 1))
	require.NoError(t, err)

	rec := doJSON(t, router, http.MethodDelete, "/estoque/"+p.ID, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, router, http.MethodDelete, "/estoque/"+p.ID, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerGroupEndpoints(t *testing.T) {
	router, service := newTestRouter(t)
	ctx := context.Background()

	rec := doJSON(t, router, http.MethodPost, "/grupos", map[string]any{"nome": "Elétrica"})
	require.Equal(t, http.StatusCreated, rec.Code)

	var grupo Group
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&grupo))
	require.Equal(t, int64(10000), grupo.Codigo)
	require.Equal(t, "ELÉTRICA", grupo.Nome)

	rec = doJSON(t, router, http.MethodPost, "/grupos", map[string]any{"nome": "elétrica"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "Grupo já cadastrado", decodeErr(t, rec))

	_, err := service.CreateProduct(ctx, createInput("F-001", grupo, 1))
	require.NoError(t, err)

	rec = doJSON(t, router, http.MethodGet, "/grupos", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodDelete, "/grupos/10000", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var deleted DeleteGroupResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&deleted))
	require.Equal(t, int64(1), deleted.DeletedCount)

	rec = doJSON(t, router, http.MethodDelete, "/grupos/10000", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "Grupo não encontrado", decodeErr(t, rec))

	rec = doJSON(t, router, http.MethodDelete, "/grupos/abc", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerListMovements(t *testing.T) {
	router, service := newTestRouter(t)
	ctx := context.Background()
	grupo, err := service.CreateGroup(ctx, "Elétrica")
	require.NoError(t, err)
	p, err := service.CreateProduct(ctx, createInput("F-001", grupo, 10))
	require.NoError(t, err)
	_, err = service.ApplyMovement(ctx, p.ID, MovementSaida, 3)
	require.NoError(t, err)

	rec := doJSON(t, router, http.MethodGet, "/movimentacoes?tipo=saida", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp MovementListResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, 1, resp.Total)
	require.Equal(t, MovementSaida, resp.Data[0].Tipo)
}
