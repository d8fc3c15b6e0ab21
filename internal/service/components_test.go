package service

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/yadro-qms/beryll-tracking/internal/domain/model"
	"github.com/yadro-qms/beryll-tracking/internal/repository"
)

// activeServer возвращает мок serverRepo с одним сервером в заданном статусе.
func activeServer(id, status string) *mockServerRepo {
	return &mockServerRepo{
		getByIDFn: func(_ context.Context, gotID string) (*model.Server, error) {
			if gotID != id {
				return nil, repository.ErrNotFound
			}
			return &model.Server{ID: id, Status: status}, nil
		},
	}
}

func newComponentService(serverRepo *mockServerRepo, componentRepo *mockComponentRepo) *ComponentService {
	return NewComponentService(serverRepo, componentRepo, nil, 200, slog.Default())
}

// TestComponentAdd_Validation проверяет отказы валидации до любых
// обращений к БД.
func TestComponentAdd_Validation(t *testing.T) {
	svc := newComponentService(activeServer("srv-1", model.ServerStatusInWork), &mockComponentRepo{})

	tests := []struct {
		name string
		in   AddComponentInput
	}{
		{
			name: "недопустимый тип",
			in: AddComponentInput{
				ComponentType: "TURBINE",
				Name:          "Турбина",
				SerialNumber:  strPtr("SN-1"),
			},
		},
		{
			name: "недопустимый статус",
			in: AddComponentInput{
				ComponentType: model.ComponentTypeCPU,
				Name:          "CPU",
				SerialNumber:  strPtr("SN-1"),
				Status:        strPtr("BROKEN"),
			},
		},
		{
			name: "статус REPLACED напрямую",
			in: AddComponentInput{
				ComponentType: model.ComponentTypeCPU,
				Name:          "CPU",
				SerialNumber:  strPtr("SN-1"),
				Status:        strPtr(model.ComponentStatusReplaced),
			},
		},
		{
			name: "без имени",
			in: AddComponentInput{
				ComponentType: model.ComponentTypeCPU,
				SerialNumber:  strPtr("SN-1"),
			},
		},
		{
			name: "без серийных номеров",
			in: AddComponentInput{
				ComponentType: model.ComponentTypeCPU,
				Name:          "CPU",
			},
		},
		{
			name: "серийные номера из пробелов",
			in: AddComponentInput{
				ComponentType:     model.ComponentTypeCPU,
				Name:              "CPU",
				SerialNumber:      strPtr("   "),
				SerialNumberYadro: strPtr(""),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Add(context.Background(), "srv-1", tt.in, "user-1")
			if !errors.Is(err, ErrValidation) {
				t.Errorf("Add() ошибка = %v, хотели ErrValidation", err)
			}
		})
	}
}

// TestComponentAdd_Defaults проверяет значения по умолчанию новой записи:
// статус OK, ручной источник данных, нормализованные номера.
func TestComponentAdd_Defaults(t *testing.T) {
	in := AddComponentInput{
		ComponentType: model.ComponentTypeHDD,
		Name:          "HDD",
		SerialNumber:  strPtr("  SN-1001  "),
	}

	c := in.newComponent("srv-1", "engineer-1")
	if c.Status != model.ComponentStatusOK {
		t.Errorf("Status = %q, хотели %q", c.Status, model.ComponentStatusOK)
	}
	if c.DataSource != model.DataSourceManual {
		t.Errorf("DataSource = %q, хотели %q", c.DataSource, model.DataSourceManual)
	}
	if c.SerialNumber == nil || *c.SerialNumber != "SN-1001" {
		t.Errorf("SerialNumber = %v, хотели SN-1001", c.SerialNumber)
	}
	if c.InstalledBy == nil || *c.InstalledBy != "engineer-1" {
		t.Errorf("InstalledBy = %v, хотели engineer-1", c.InstalledBy)
	}

	// Явно переданный статус сохраняется.
	in.Status = strPtr(model.ComponentStatusWarning)
	if c := in.newComponent("srv-1", "engineer-1"); c.Status != model.ComponentStatusWarning {
		t.Errorf("Status = %q, хотели %q", c.Status, model.ComponentStatusWarning)
	}
}

// TestComponentAdd_ArchivedServer проверяет запрет мутаций
// архивированного сервера.
func TestComponentAdd_ArchivedServer(t *testing.T) {
	svc := newComponentService(activeServer("srv-1", model.ServerStatusArchived), &mockComponentRepo{})

	_, err := svc.Add(context.Background(), "srv-1", AddComponentInput{
		ComponentType: model.ComponentTypeCPU,
		Name:          "CPU",
		SerialNumber:  strPtr("SN-1"),
	}, "user-1")
	if !errors.Is(err, ErrServerArchived) {
		t.Errorf("Add() ошибка = %v, хотели ErrServerArchived", err)
	}
}

// TestComponentAdd_ServerNotFound проверяет ErrNotFound по несуществующему серверу.
func TestComponentAdd_ServerNotFound(t *testing.T) {
	svc := newComponentService(&mockServerRepo{}, &mockComponentRepo{})

	_, err := svc.Add(context.Background(), "no-such", AddComponentInput{
		ComponentType: model.ComponentTypeCPU,
		Name:          "CPU",
		SerialNumber:  strPtr("SN-1"),
	}, "user-1")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Add() ошибка = %v, хотели ErrNotFound", err)
	}
}

// TestBatchAdd_Limits проверяет границы размера пакета.
func TestBatchAdd_Limits(t *testing.T) {
	serverRepo := activeServer("srv-1", model.ServerStatusInWork)
	svc := NewComponentService(serverRepo, &mockComponentRepo{}, nil, 2, slog.Default())

	_, err := svc.BatchAdd(context.Background(), "srv-1", nil, "user-1")
	if !errors.Is(err, ErrValidation) {
		t.Errorf("BatchAdd(пустой) ошибка = %v, хотели ErrValidation", err)
	}

	big := make([]AddComponentInput, 3)
	_, err = svc.BatchAdd(context.Background(), "srv-1", big, "user-1")
	if !errors.Is(err, ErrValidation) {
		t.Errorf("BatchAdd(превышение) ошибка = %v, хотели ErrValidation", err)
	}
}

// TestCheckSerial проверяет read-only проверку доступности номера,
// включая симметрию по обеим колонкам.
func TestCheckSerial(t *testing.T) {
	existing := &model.ComponentWithServer{}
	existing.ID = "comp-1"
	existing.SerialNumberYadro = strPtr("SN-1001")

	componentRepo := &mockComponentRepo{
		findConflictFn: func(_ context.Context, serials []string, excludeID *string) (*model.ComponentWithServer, error) {
			if excludeID != nil {
				t.Errorf("excludeID = %v, хотели nil", *excludeID)
			}
			for _, s := range serials {
				if s == "SN-1001" {
					return existing, nil
				}
			}
			return nil, repository.ErrNotFound
		},
	}
	svc := newComponentService(&mockServerRepo{}, componentRepo)

	// Номер занят внутренним серийником другого комплектующего.
	res, err := svc.CheckSerial(context.Background(), "SN-1001")
	if err != nil {
		t.Fatalf("CheckSerial ошибка: %v", err)
	}
	if res.Available {
		t.Error("Available = true, хотели false")
	}
	if res.Existing == nil || res.Existing.ID != "comp-1" {
		t.Errorf("Existing = %+v, хотели comp-1", res.Existing)
	}

	// Свободный номер.
	res, err = svc.CheckSerial(context.Background(), "  SN-9999  ")
	if err != nil {
		t.Fatalf("CheckSerial ошибка: %v", err)
	}
	if !res.Available {
		t.Error("Available = false, хотели true")
	}
	if res.Serial != "SN-9999" {
		t.Errorf("Serial = %q, хотели приведённый SN-9999", res.Serial)
	}

	// Пустая строка.
	if _, err := svc.CheckSerial(context.Background(), "   "); !errors.Is(err, ErrValidation) {
		t.Errorf("CheckSerial(пусто) ошибка = %v, хотели ErrValidation", err)
	}
}

// TestSearch_EmptyFilter проверяет отказ поиска без единого фильтра.
func TestSearch_EmptyFilter(t *testing.T) {
	svc := newComponentService(&mockServerRepo{}, &mockComponentRepo{})

	_, err := svc.Search(context.Background(), repository.ComponentSearchFilter{}, 50, 0)
	if !errors.Is(err, ErrValidation) {
		t.Errorf("Search(без фильтров) ошибка = %v, хотели ErrValidation", err)
	}

	_, err = svc.Search(context.Background(), repository.ComponentSearchFilter{Type: strPtr("TURBINE")}, 50, 0)
	if !errors.Is(err, ErrValidation) {
		t.Errorf("Search(неизвестный тип) ошибка = %v, хотели ErrValidation", err)
	}
}

// TestScanSerial проверяет поиск по сканеру: точное совпадение имеет
// приоритет перед подстрочным.
func TestScanSerial(t *testing.T) {
	exact := &model.ComponentWithServer{}
	exact.ID = "comp-exact"
	exact.SerialNumber = strPtr("SN-5000")

	partial := &model.ComponentWithServer{}
	partial.ID = "comp-partial"
	partial.SerialNumber = strPtr("SN-5000-B")

	componentRepo := &mockComponentRepo{
		findConflictFn: func(_ context.Context, serials []string, _ *string) (*model.ComponentWithServer, error) {
			if len(serials) == 1 && serials[0] == "SN-5000" {
				return exact, nil
			}
			return nil, repository.ErrNotFound
		},
		searchFn: func(_ context.Context, filter repository.ComponentSearchFilter, _, _ int) ([]*model.ComponentWithServer, error) {
			if filter.Query == nil {
				t.Fatal("Query = nil, хотели подстроку")
			}
			return []*model.ComponentWithServer{partial}, nil
		},
	}
	svc := newComponentService(&mockServerRepo{}, componentRepo)

	// Точное совпадение: ровно одна запись, без подстрочного поиска.
	res, err := svc.ScanSerial(context.Background(), " SN-5000 ", 10)
	if err != nil {
		t.Fatalf("ScanSerial ошибка: %v", err)
	}
	if len(res) != 1 || res[0].ID != "comp-exact" {
		t.Errorf("ScanSerial = %+v, хотели ровно comp-exact", res)
	}

	// Промах точного — кандидаты по подстроке.
	res, err = svc.ScanSerial(context.Background(), "SN-50", 10)
	if err != nil {
		t.Fatalf("ScanSerial ошибка: %v", err)
	}
	if len(res) != 1 || res[0].ID != "comp-partial" {
		t.Errorf("ScanSerial = %+v, хотели comp-partial", res)
	}

	if _, err := svc.ScanSerial(context.Background(), "  ", 10); !errors.Is(err, ErrValidation) {
		t.Errorf("ScanSerial(пусто) ошибка = %v, хотели ErrValidation", err)
	}
}

// TestListByServer_InvalidType проверяет отказ по неизвестному типу.
func TestListByServer_InvalidType(t *testing.T) {
	svc := newComponentService(activeServer("srv-1", model.ServerStatusInWork), &mockComponentRepo{})

	_, err := svc.ListByServer(context.Background(), "srv-1", strPtr("TURBINE"))
	if !errors.Is(err, ErrValidation) {
		t.Errorf("ListByServer ошибка = %v, хотели ErrValidation", err)
	}
}

// TestUpdate_RejectsReplacedStatus проверяет, что REPLACED нельзя
// выставить обычным обновлением.
func TestUpdate_RejectsReplacedStatus(t *testing.T) {
	svc := newComponentService(&mockServerRepo{}, &mockComponentRepo{})

	_, err := svc.Update(context.Background(), "comp-1", UpdateComponentInput{
		Status: strPtr(model.ComponentStatusReplaced),
	}, "user-1")
	if !errors.Is(err, ErrValidation) {
		t.Errorf("Update ошибка = %v, хотели ErrValidation", err)
	}
}

// TestUpdateSerials_RequiresIdentity проверяет, что нельзя снять оба номера.
func TestUpdateSerials_RequiresIdentity(t *testing.T) {
	svc := newComponentService(&mockServerRepo{}, &mockComponentRepo{})

	_, err := svc.UpdateSerials(context.Background(), "comp-1", nil, strPtr("  "), "user-1")
	if !errors.Is(err, ErrValidation) {
		t.Errorf("UpdateSerials ошибка = %v, хотели ErrValidation", err)
	}
}

// TestReplace_RequiresNewSerial проверяет обязательность номера преемника.
func TestReplace_RequiresNewSerial(t *testing.T) {
	svc := newComponentService(&mockServerRepo{}, &mockComponentRepo{})

	_, err := svc.Replace(context.Background(), "comp-1", ReplaceComponentInput{}, "user-1")
	if !errors.Is(err, ErrValidation) {
		t.Errorf("Replace ошибка = %v, хотели ErrValidation", err)
	}
}

// TestMergeMetadata проверяет поверхностное слияние метаданных.
func TestMergeMetadata(t *testing.T) {
	base := map[string]any{"a": 1, "b": "old", "c": true}
	patch := map[string]any{"b": "new", "c": nil, "d": 4}

	merged := mergeMetadata(base, patch)

	if merged["a"] != 1 {
		t.Errorf("a = %v, хотели 1 (сохранённый ключ)", merged["a"])
	}
	if merged["b"] != "new" {
		t.Errorf("b = %v, хотели new (перекрытый ключ)", merged["b"])
	}
	if _, ok := merged["c"]; ok {
		t.Error("ключ c остался, хотели удаление по nil")
	}
	if merged["d"] != 4 {
		t.Errorf("d = %v, хотели 4 (добавленный ключ)", merged["d"])
	}

	// Пустой patch возвращает base без копирования.
	if got := mergeMetadata(base, nil); len(got) != len(base) {
		t.Errorf("пустой patch: len = %d, хотели %d", len(got), len(base))
	}
}

// TestConflictingSerial проверяет выбор конкретного занятого номера
// для сообщения об ошибке.
func TestConflictingSerial(t *testing.T) {
	existing := &model.ComponentWithServer{}
	existing.SerialNumber = strPtr("SN-B")

	got := conflictingSerial([]string{"SN-A", "SN-B"}, existing)
	if got != "SN-B" {
		t.Errorf("conflictingSerial = %q, хотели SN-B", got)
	}
}

// TestSerialConflictError проверяет совместимость типизированной
// ошибки с errors.Is(err, ErrConflict).
func TestSerialConflictError(t *testing.T) {
	var err error = &SerialConflictError{Serial: "SN-1"}
	if !errors.Is(err, ErrConflict) {
		t.Error("SerialConflictError не распознаётся как ErrConflict")
	}

	var sce *SerialConflictError
	if !errors.As(err, &sce) {
		t.Fatal("errors.As не извлекает SerialConflictError")
	}
	if sce.Serial != "SN-1" {
		t.Errorf("Serial = %q, хотели SN-1", sce.Serial)
	}
}
