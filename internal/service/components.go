// components.go — сервис учёта комплектующих: добавление (одиночное и
// пакетное), обновление, коррекция серийных номеров, замена, удаление,
// поиск по парку. Охраняет инвариант уникальности серийных номеров:
// номера активных комплектующих не пересекаются во всём парке, причём
// основной и внутренний номера образуют одно пространство значений.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/yadro-qms/beryll-tracking/internal/domain/model"
	"github.com/yadro-qms/beryll-tracking/internal/repository"
)

// ComponentService — сервис учёта комплектующих.
type ComponentService struct {
	serverRepo    repository.ServerRepository
	componentRepo repository.ComponentRepository
	txRunner      *repository.TxRunner
	batchMaxItems int
	logger        *slog.Logger
}

// NewComponentService создаёт сервис комплектующих.
func NewComponentService(
	serverRepo repository.ServerRepository,
	componentRepo repository.ComponentRepository,
	txRunner *repository.TxRunner,
	batchMaxItems int,
	logger *slog.Logger,
) *ComponentService {
	return &ComponentService{
		serverRepo:    serverRepo,
		componentRepo: componentRepo,
		txRunner:      txRunner,
		batchMaxItems: batchMaxItems,
		logger:        logger.With(slog.String("component", "component_service")),
	}
}

// AddComponentInput — данные добавления комплектующего.
type AddComponentInput struct {
	ComponentType     string
	Name              string
	Manufacturer      *string
	Model             *string
	PartNumber        *string
	Slot              *string
	Capacity          *int64
	Speed             *int
	SerialNumber      *string
	SerialNumberYadro *string
	Status            *string
	Metadata          map[string]any
	Notes             *string
}

// validate проверяет закрытые перечисления и обязательность идентичности.
func (in *AddComponentInput) validate() error {
	if !model.IsValidComponentType(in.ComponentType) {
		return fmt.Errorf("%w: недопустимый тип комплектующего %q", ErrValidation, in.ComponentType)
	}
	if in.Status != nil && !model.IsValidComponentStatus(*in.Status) {
		return fmt.Errorf("%w: недопустимый статус %q", ErrValidation, *in.Status)
	}
	if in.Status != nil && *in.Status == model.ComponentStatusReplaced {
		return fmt.Errorf("%w: статус REPLACED выставляется только заменой", ErrValidation)
	}
	if in.Name == "" {
		return fmt.Errorf("%w: имя комплектующего обязательно", ErrValidation)
	}
	if normalizeSerial(in.SerialNumber) == nil && normalizeSerial(in.SerialNumberYadro) == nil {
		return fmt.Errorf("%w: требуется хотя бы один серийный номер", ErrValidation)
	}
	return nil
}

// newComponent строит модель из входных данных.
func (in *AddComponentInput) newComponent(serverID, actor string) *model.Component {
	status := model.ComponentStatusOK
	if in.Status != nil {
		status = *in.Status
	}
	return &model.Component{
		ID:                uuid.New().String(),
		ServerID:          serverID,
		ComponentType:     in.ComponentType,
		Name:              in.Name,
		Manufacturer:      in.Manufacturer,
		Model:             in.Model,
		PartNumber:        in.PartNumber,
		Slot:              in.Slot,
		Capacity:          in.Capacity,
		Speed:             in.Speed,
		SerialNumber:      normalizeSerial(in.SerialNumber),
		SerialNumberYadro: normalizeSerial(in.SerialNumberYadro),
		Status:            status,
		Metadata:          in.Metadata,
		DataSource:        model.DataSourceManual,
		InstalledBy:       &actor,
	}
}

// Add добавляет одно комплектующее. Операция атомарна: проверка
// конфликта серийных номеров, запись, занятие номеров в реестре и
// событие истории выполняются в одной транзакции.
func (s *ComponentService) Add(ctx context.Context, serverID string, in AddComponentInput, actor string) (*model.Component, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	if err := s.requireMutableServer(ctx, serverID); err != nil {
		return nil, err
	}

	c := in.newComponent(serverID, actor)

	err := s.txRunner.RunInTx(ctx, func(tx pgx.Tx) error {
		if err := s.createInTx(ctx, tx, c); err != nil {
			return err
		}
		return writeHistory(ctx, tx, serverID, actor, model.ActionComponentAdded,
			model.ComponentAddedPayload{
				ComponentID:       c.ID,
				ComponentType:     c.ComponentType,
				Name:              c.Name,
				SerialNumber:      c.SerialNumber,
				SerialNumberYadro: c.SerialNumberYadro,
			})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Комплектующее добавлено",
		slog.String("component_id", c.ID),
		slog.String("server_id", serverID),
		slog.String("type", c.ComponentType),
		slog.String("actor", actor),
	)
	return c, nil
}

// createInTx выполняет проверку конфликта, запись и занятие номеров.
func (s *ComponentService) createInTx(ctx context.Context, tx pgx.Tx, c *model.Component) error {
	repo := repository.NewComponentRepository(tx)

	// Прикладная проверка даёт содержательный 409 с указанием, где
	// занят номер; реестр component_serials страхует от гонок.
	serials := c.IdentityValues()
	existing, err := repo.FindActiveSerialConflict(ctx, serials, nil)
	if err == nil {
		return &SerialConflictError{Serial: conflictingSerial(serials, existing), Existing: existing}
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return err
	}

	if err := repo.Create(ctx, c); err != nil {
		return err
	}
	if err := repo.ClaimSerials(ctx, c.ID, serials); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return &SerialConflictError{Serial: serials[0]}
		}
		return err
	}
	return nil
}

// conflictingSerial возвращает номер из serials, занятый existing.
func conflictingSerial(serials []string, existing *model.ComponentWithServer) string {
	taken := map[string]bool{}
	for _, v := range existing.IdentityValues() {
		taken[v] = true
	}
	for _, v := range serials {
		if taken[v] {
			return v
		}
	}
	if len(serials) > 0 {
		return serials[0]
	}
	return ""
}

// BatchItemResult — результат обработки одной позиции пакета.
type BatchItemResult struct {
	// Index — позиция во входном пакете
	Index int
	// Component — созданное комплектующее (nil при ошибке)
	Component *model.Component
	// Err — причина отказа позиции (nil при успехе)
	Err error
}

// BatchResult — итог пакетного добавления.
type BatchResult struct {
	// Added — успешно созданные комплектующие
	Added []*model.Component
	// Failed — отклонённые позиции с причинами
	Failed []BatchItemResult
}

// BatchAdd добавляет пакет комплектующих. Каждая позиция обрабатывается
// в собственной транзакции: отказ одной не откатывает остальные.
// Дубликаты внутри пакета отклоняются той же проверкой, что и конфликты
// с парком — более ранняя позиция успевает занять номер.
func (s *ComponentService) BatchAdd(ctx context.Context, serverID string, items []AddComponentInput, actor string) (*BatchResult, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: пустой пакет", ErrValidation)
	}
	if len(items) > s.batchMaxItems {
		return nil, fmt.Errorf("%w: пакет из %d позиций превышает предел %d",
			ErrValidation, len(items), s.batchMaxItems)
	}

	if err := s.requireMutableServer(ctx, serverID); err != nil {
		return nil, err
	}

	result := &BatchResult{}
	for i, in := range items {
		c, err := s.addBatchItem(ctx, serverID, in, actor)
		if err != nil {
			result.Failed = append(result.Failed, BatchItemResult{Index: i, Err: err})
			continue
		}
		result.Added = append(result.Added, c)
	}

	// Итоговое событие пакета — отдельной записью, если хоть одна
	// позиция прошла.
	if len(result.Added) > 0 {
		ids := make([]string, len(result.Added))
		for i, c := range result.Added {
			ids[i] = c.ID
		}
		err := s.txRunner.RunInTx(ctx, func(tx pgx.Tx) error {
			return writeHistory(ctx, tx, serverID, actor, model.ActionBatchAdded,
				model.BatchAddedPayload{
					Count:        len(result.Added),
					ComponentIDs: ids,
					FailedCount:  len(result.Failed),
				})
		})
		if err != nil {
			s.logger.Warn("Не удалось записать итоговое событие пакета",
				slog.String("server_id", serverID),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.Info("Пакетное добавление завершено",
		slog.String("server_id", serverID),
		slog.Int("added", len(result.Added)),
		slog.Int("failed", len(result.Failed)),
		slog.String("actor", actor),
	)
	return result, nil
}

// addBatchItem обрабатывает одну позицию пакета в собственной транзакции.
func (s *ComponentService) addBatchItem(ctx context.Context, serverID string, in AddComponentInput, actor string) (*model.Component, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	c := in.newComponent(serverID, actor)
	err := s.txRunner.RunInTx(ctx, func(tx pgx.Tx) error {
		if err := s.createInTx(ctx, tx, c); err != nil {
			return err
		}
		return writeHistory(ctx, tx, serverID, actor, model.ActionComponentAdded,
			model.ComponentAddedPayload{
				ComponentID:       c.ID,
				ComponentType:     c.ComponentType,
				Name:              c.Name,
				SerialNumber:      c.SerialNumber,
				SerialNumberYadro: c.SerialNumberYadro,
			})
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Get возвращает комплектующее по ID.
func (s *ComponentService) Get(ctx context.Context, id string) (*model.Component, error) {
	c, err := s.componentRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("получение комплектующего: %w", err)
	}
	return c, nil
}

// ListByServer возвращает комплектующие сервера, опционально по типу.
func (s *ComponentService) ListByServer(ctx context.Context, serverID string, componentType *string) ([]*model.Component, error) {
	if componentType != nil && !model.IsValidComponentType(*componentType) {
		return nil, fmt.Errorf("%w: недопустимый тип комплектующего %q", ErrValidation, *componentType)
	}
	if _, err := s.requireServer(ctx, serverID); err != nil {
		return nil, err
	}

	components, err := s.componentRepo.ListByServer(ctx, serverID, componentType)
	if err != nil {
		return nil, fmt.Errorf("получение комплектующих: %w", err)
	}
	return components, nil
}

// UpdateComponentInput — изменяемые атрибуты комплектующего.
// Серийные номера и тип здесь отсутствуют намеренно: идентичность
// корректируется только через UpdateSerials, тип неизменяем.
type UpdateComponentInput struct {
	Name         *string
	Manufacturer *string
	Model        *string
	PartNumber   *string
	Slot         *string
	Capacity     *int64
	Speed        *int
	Status       *string
	Metadata     map[string]any
	// ClearMetadata сбрасывает метаданные целиком: слияние не выполняется.
	ClearMetadata bool
	Notes         *string
}

// Update обновляет изменяемые атрибуты комплектующего. Metadata
// сливается поверхностно: переданные ключи перекрывают прежние,
// ключи со значением nil удаляются, остальные сохраняются.
func (s *ComponentService) Update(ctx context.Context, id string, in UpdateComponentInput, actor string) (*model.Component, error) {
	if in.Status != nil && !model.IsValidComponentStatus(*in.Status) {
		return nil, fmt.Errorf("%w: недопустимый статус %q", ErrValidation, *in.Status)
	}
	if in.Status != nil && *in.Status == model.ComponentStatusReplaced {
		return nil, fmt.Errorf("%w: статус REPLACED выставляется только заменой", ErrValidation)
	}

	var updated *model.Component
	err := s.txRunner.RunInTx(ctx, func(tx pgx.Tx) error {
		repo := repository.NewComponentRepository(tx)

		c, err := repo.GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if c.Status == model.ComponentStatusReplaced {
			return ErrComponentReplaced
		}

		oldValues := c.Snapshot()

		if in.Name != nil {
			c.Name = *in.Name
		}
		if in.Manufacturer != nil {
			c.Manufacturer = in.Manufacturer
		}
		if in.Model != nil {
			c.Model = in.Model
		}
		if in.PartNumber != nil {
			c.PartNumber = in.PartNumber
		}
		if in.Slot != nil {
			c.Slot = in.Slot
		}
		if in.Capacity != nil {
			c.Capacity = in.Capacity
		}
		if in.Speed != nil {
			c.Speed = in.Speed
		}
		if in.Status != nil {
			c.Status = *in.Status
		}
		if in.Notes != nil {
			c.Notes = in.Notes
		}
		if in.ClearMetadata {
			c.Metadata = map[string]any{}
		} else {
			c.Metadata = mergeMetadata(c.Metadata, in.Metadata)
		}

		if err := repo.Update(ctx, c); err != nil {
			return err
		}

		updated = c
		return writeHistory(ctx, tx, c.ServerID, actor, model.ActionComponentUpdated,
			model.ComponentUpdatedPayload{
				ComponentID:   c.ID,
				ComponentType: c.ComponentType,
				OldValues:     oldValues,
				NewValues:     c.Snapshot(),
			})
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	s.logger.Info("Комплектующее обновлено",
		slog.String("component_id", id),
		slog.String("actor", actor),
	)
	return updated, nil
}

// UpdateSerials корректирует серийные номера комплектующего.
// Оба поля задаются целиком (nil — снять значение); хотя бы один номер
// должен остаться. Реестр перезанимается в той же транзакции.
func (s *ComponentService) UpdateSerials(ctx context.Context, id string, serialNumber, serialNumberYadro *string, actor string) (*model.Component, error) {
	newSN := normalizeSerial(serialNumber)
	newSNY := normalizeSerial(serialNumberYadro)
	if newSN == nil && newSNY == nil {
		return nil, fmt.Errorf("%w: требуется хотя бы один серийный номер", ErrValidation)
	}

	var updated *model.Component
	err := s.txRunner.RunInTx(ctx, func(tx pgx.Tx) error {
		repo := repository.NewComponentRepository(tx)

		c, err := repo.GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if c.Status == model.ComponentStatusReplaced {
			return ErrComponentReplaced
		}

		oldSerials := map[string]*string{
			"serialNumber":      c.SerialNumber,
			"serialNumberYadro": c.SerialNumberYadro,
		}

		c.SerialNumber = newSN
		c.SerialNumberYadro = newSNY
		serials := c.IdentityValues()

		existing, err := repo.FindActiveSerialConflict(ctx, serials, &c.ID)
		if err == nil {
			return &SerialConflictError{Serial: conflictingSerial(serials, existing), Existing: existing}
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return err
		}

		if err := repo.ReleaseSerials(ctx, c.ID); err != nil {
			return err
		}
		if err := repo.ClaimSerials(ctx, c.ID, serials); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return &SerialConflictError{Serial: serials[0]}
			}
			return err
		}
		if err := repo.UpdateSerials(ctx, c); err != nil {
			return err
		}

		updated = c
		return writeHistory(ctx, tx, c.ServerID, actor, model.ActionSerialsUpdated,
			model.SerialsUpdatedPayload{
				ComponentID: c.ID,
				OldSerials:  oldSerials,
				NewSerials: map[string]*string{
					"serialNumber":      c.SerialNumber,
					"serialNumberYadro": c.SerialNumberYadro,
				},
			})
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	s.logger.Info("Серийные номера скорректированы",
		slog.String("component_id", id),
		slog.String("actor", actor),
	)
	return updated, nil
}

// ReplaceComponentInput — данные замены комплектующего.
type ReplaceComponentInput struct {
	// Серийные номера нового экземпляра (хотя бы один).
	SerialNumber      *string
	SerialNumberYadro *string
	// Переопределения; nil — наследуется от заменяемого.
	Name         *string
	Manufacturer *string
	Model        *string
	PartNumber   *string
	// Reason — причина замены.
	Reason *string
	Notes  *string
}

// Replace заменяет комплектующее: прежний экземпляр помечается REPLACED
// и выходит из инварианта уникальности, преемник наследует слот и
// характеристики и ссылается на предшественника. Атомарно.
func (s *ComponentService) Replace(ctx context.Context, id string, in ReplaceComponentInput, actor string) (*model.Component, error) {
	newSN := normalizeSerial(in.SerialNumber)
	newSNY := normalizeSerial(in.SerialNumberYadro)
	if newSN == nil && newSNY == nil {
		return nil, fmt.Errorf("%w: требуется хотя бы один серийный номер нового экземпляра", ErrValidation)
	}

	var successor *model.Component
	err := s.txRunner.RunInTx(ctx, func(tx pgx.Tx) error {
		repo := repository.NewComponentRepository(tx)

		old, err := repo.GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if old.Status == model.ComponentStatusReplaced {
			return fmt.Errorf("%w: комплектующее уже заменено", ErrConflict)
		}

		if err := s.requireMutableServerTx(ctx, tx, old.ServerID); err != nil {
			return err
		}

		// Преемник наследует слот и характеристики предшественника.
		now := time.Now().UTC()
		successor = &model.Component{
			ID:                  uuid.New().String(),
			ServerID:            old.ServerID,
			ComponentType:       old.ComponentType,
			Name:                old.Name,
			Manufacturer:        old.Manufacturer,
			Model:               old.Model,
			PartNumber:          old.PartNumber,
			Slot:                old.Slot,
			Capacity:            old.Capacity,
			Speed:               old.Speed,
			SerialNumber:        newSN,
			SerialNumberYadro:   newSNY,
			Status:              model.ComponentStatusOK,
			DataSource:          model.DataSourceManual,
			InstalledBy:         &actor,
			Notes:               in.Notes,
			ReplacesComponentID: &old.ID,
		}
		if in.Name != nil {
			successor.Name = *in.Name
		}
		if in.Manufacturer != nil {
			successor.Manufacturer = in.Manufacturer
		}
		if in.Model != nil {
			successor.Model = in.Model
		}
		if in.PartNumber != nil {
			successor.PartNumber = in.PartNumber
		}

		// Конфликт проверяется до пометки старого: серийники нового
		// экземпляра не должны быть заняты никем, кроме заменяемого.
		serials := successor.IdentityValues()
		existing, err := repo.FindActiveSerialConflict(ctx, serials, &old.ID)
		if err == nil {
			return &SerialConflictError{Serial: conflictingSerial(serials, existing), Existing: existing}
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return err
		}

		// Прежний экземпляр: статус REPLACED, сведения о замене в
		// атрибутах и метаданных, номера освобождаются.
		old.ReplacedAt = &now
		old.ReplacedBy = &actor
		old.ReplacementReason = in.Reason
		old.Metadata = mergeMetadata(old.Metadata, map[string]any{
			"replacedAt":           now.Format(time.RFC3339),
			"replacedBy":           actor,
			"replacementReason":    derefOr(in.Reason, ""),
			"replacementSuccessor": successor.ID,
		})
		if err := repo.MarkReplaced(ctx, old); err != nil {
			return err
		}
		if err := repo.ReleaseSerials(ctx, old.ID); err != nil {
			return err
		}

		if err := repo.Create(ctx, successor); err != nil {
			return err
		}
		if err := repo.ClaimSerials(ctx, successor.ID, serials); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return &SerialConflictError{Serial: serials[0]}
			}
			return err
		}

		return writeHistory(ctx, tx, old.ServerID, actor, model.ActionComponentReplaced,
			model.ComponentReplacedPayload{
				OldComponentID: old.ID,
				NewComponentID: successor.ID,
				ComponentType:  old.ComponentType,
				OldSerial:      firstSerial(old),
				NewSerial:      firstSerial(successor),
				Reason:         in.Reason,
			})
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	s.logger.Info("Комплектующее заменено",
		slog.String("old_component_id", id),
		slog.String("new_component_id", successor.ID),
		slog.String("actor", actor),
	)
	return successor, nil
}

// Delete удаляет комплектующее. Снимок удаляемого пишется в историю
// до удаления — след остаётся и после исчезновения записи.
func (s *ComponentService) Delete(ctx context.Context, id, actor string, reason *string) error {
	err := s.txRunner.RunInTx(ctx, func(tx pgx.Tx) error {
		repo := repository.NewComponentRepository(tx)

		c, err := repo.GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}

		if err := writeHistory(ctx, tx, c.ServerID, actor, model.ActionComponentDeleted,
			model.ComponentDeletedPayload{
				ComponentID:       c.ID,
				ComponentType:     c.ComponentType,
				Name:              c.Name,
				SerialNumber:      c.SerialNumber,
				SerialNumberYadro: c.SerialNumberYadro,
				Reason:            reason,
			}); err != nil {
			return err
		}

		if err := repo.ReleaseSerials(ctx, c.ID); err != nil {
			return err
		}
		return repo.Delete(ctx, c.ID)
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}

	s.logger.Info("Комплектующее удалено",
		slog.String("component_id", id),
		slog.String("actor", actor),
	)
	return nil
}

// Search ищет комплектующие во всём парке: подстрока по серийным номерам
// и описательным полям, плюс фильтры по типу, статусу и серверу.
// Хотя бы один фильтр обязателен.
func (s *ComponentService) Search(ctx context.Context, filter repository.ComponentSearchFilter, limit, offset int) ([]*model.ComponentWithServer, error) {
	hasQuery := filter.Query != nil && *filter.Query != ""
	if !hasQuery && filter.Type == nil && filter.Status == nil && filter.ServerID == nil {
		return nil, fmt.Errorf("%w: не задан ни один фильтр поиска", ErrValidation)
	}
	if filter.Type != nil && !model.IsValidComponentType(*filter.Type) {
		return nil, fmt.Errorf("%w: неизвестный тип комплектующего %q", ErrValidation, *filter.Type)
	}
	if filter.Status != nil && !model.IsValidComponentStatus(*filter.Status) {
		return nil, fmt.Errorf("%w: неизвестный статус %q", ErrValidation, *filter.Status)
	}
	result, err := s.componentRepo.Search(ctx, filter, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("поиск комплектующих: %w", err)
	}
	return result, nil
}

// ScanSerial ищет комплектующее по отсканированному номеру: сначала
// точное совпадение среди активных, при промахе — по подстроке.
// Пригодно для сканеров штрихкодов: точный матч возвращает ровно одну
// запись, неполный ввод даёт список кандидатов.
func (s *ComponentService) ScanSerial(ctx context.Context, serial string, limit int) ([]*model.ComponentWithServer, error) {
	norm := normalizeSerial(&serial)
	if norm == nil {
		return nil, fmt.Errorf("%w: пустой серийный номер", ErrValidation)
	}

	exact, err := s.componentRepo.FindActiveSerialConflict(ctx, []string{*norm}, nil)
	if err == nil {
		return []*model.ComponentWithServer{exact}, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("поиск по отсканированному номеру: %w", err)
	}

	result, err := s.componentRepo.Search(ctx, repository.ComponentSearchFilter{Query: norm}, limit, 0)
	if err != nil {
		return nil, fmt.Errorf("поиск по отсканированному номеру: %w", err)
	}
	return result, nil
}

// SerialCheckResult — результат проверки доступности серийного номера.
type SerialCheckResult struct {
	// Serial — проверяемый номер
	Serial string
	// Available — номер свободен
	Available bool
	// Existing — активное комплектующее, за которым числится номер
	Existing *model.ComponentWithServer
}

// CheckSerial проверяет доступность серийного номера без мутаций.
func (s *ComponentService) CheckSerial(ctx context.Context, serial string) (*SerialCheckResult, error) {
	norm := normalizeSerial(&serial)
	if norm == nil {
		return nil, fmt.Errorf("%w: пустой серийный номер", ErrValidation)
	}

	existing, err := s.componentRepo.FindActiveSerialConflict(ctx, []string{*norm}, nil)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return &SerialCheckResult{Serial: *norm, Available: true}, nil
		}
		return nil, fmt.Errorf("проверка серийного номера: %w", err)
	}
	return &SerialCheckResult{Serial: *norm, Available: false, Existing: existing}, nil
}

// --- Вспомогательные ---

// requireServer возвращает сервер или ErrNotFound.
func (s *ComponentService) requireServer(ctx context.Context, serverID string) (*model.Server, error) {
	srv, err := s.serverRepo.GetByID(ctx, serverID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("получение сервера: %w", err)
	}
	return srv, nil
}

// requireMutableServer проверяет, что сервер существует и не архивирован.
func (s *ComponentService) requireMutableServer(ctx context.Context, serverID string) error {
	srv, err := s.requireServer(ctx, serverID)
	if err != nil {
		return err
	}
	if srv.Status == model.ServerStatusArchived {
		return ErrServerArchived
	}
	return nil
}

// requireMutableServerTx — то же в рамках транзакции.
func (s *ComponentService) requireMutableServerTx(ctx context.Context, tx pgx.Tx, serverID string) error {
	srv, err := repository.NewServerRepository(tx).GetByID(ctx, serverID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	if srv.Status == model.ServerStatusArchived {
		return ErrServerArchived
	}
	return nil
}

// mergeMetadata выполняет поверхностное слияние метаданных.
// Ключи со значением nil удаляются.
func mergeMetadata(base, patch map[string]any) map[string]any {
	if len(patch) == 0 {
		return base
	}
	merged := make(map[string]any, len(base)+len(patch))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range patch {
		if v == nil {
			delete(merged, k)
			continue
		}
		merged[k] = v
	}
	return merged
}

// firstSerial возвращает основной серийник, либо внутренний.
func firstSerial(c *model.Component) string {
	if c.SerialNumber != nil {
		return *c.SerialNumber
	}
	if c.SerialNumberYadro != nil {
		return *c.SerialNumberYadro
	}
	return ""
}

// derefOr возвращает значение указателя или fallback.
func derefOr(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}
