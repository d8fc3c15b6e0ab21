package model

import "time"

// Типы комплектующих.
const (
	ComponentTypeCPU         = "CPU"
	ComponentTypeRAM         = "RAM"
	ComponentTypeHDD         = "HDD"
	ComponentTypeSSD         = "SSD"
	ComponentTypeNVME        = "NVME"
	ComponentTypeNIC         = "NIC"
	ComponentTypeMotherboard = "MOTHERBOARD"
	ComponentTypePSU         = "PSU"
	ComponentTypeGPU         = "GPU"
	ComponentTypeRAID        = "RAID"
	ComponentTypeBMC         = "BMC"
	ComponentTypeOther       = "OTHER"
)

// ComponentTypes — закрытый список типов комплектующих (порядок — для сообщений об ошибках).
var ComponentTypes = []string{
	ComponentTypeCPU, ComponentTypeRAM, ComponentTypeHDD, ComponentTypeSSD,
	ComponentTypeNVME, ComponentTypeNIC, ComponentTypeMotherboard, ComponentTypePSU,
	ComponentTypeGPU, ComponentTypeRAID, ComponentTypeBMC, ComponentTypeOther,
}

// Статусы комплектующих.
const (
	ComponentStatusOK       = "OK"
	ComponentStatusWarning  = "WARNING"
	ComponentStatusCritical = "CRITICAL"
	ComponentStatusUnknown  = "UNKNOWN"
	// ComponentStatusReplaced — комплектующее заменено и выведено из
	// инварианта уникальности серийных номеров.
	ComponentStatusReplaced = "REPLACED"
)

// ComponentStatuses — закрытый список статусов комплектующих.
var ComponentStatuses = []string{
	ComponentStatusOK, ComponentStatusWarning, ComponentStatusCritical,
	ComponentStatusUnknown, ComponentStatusReplaced,
}

// IsValidComponentType проверяет допустимость типа комплектующего.
func IsValidComponentType(t string) bool {
	for _, v := range ComponentTypes {
		if v == t {
			return true
		}
	}
	return false
}

// IsValidComponentStatus проверяет допустимость статуса комплектующего.
func IsValidComponentStatus(s string) bool {
	for _, v := range ComponentStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// DataSourceManual — источник данных "введено вручную".
const DataSourceManual = "MANUAL"

// Component — физическое комплектующее, установленное в сервер.
// Хранится в таблице components.
//
// Инвариант: множества {SerialNumber, SerialNumberYadro} любых двух
// комплектующих со статусом != REPLACED не пересекаются во всём парке.
// Идентичность заморожена после создания; меняется только через замену
// (Replace) или явную коррекцию серийных номеров (UpdateSerials).
type Component struct {
	// ID — UUID записи
	ID string
	// ServerID — сервер, в котором установлено комплектующее
	ServerID string
	// ComponentType — тип (CPU, RAM, HDD, ...)
	ComponentType string
	// Name — человекочитаемое имя
	Name string
	// Manufacturer — производитель
	Manufacturer *string
	// Model — модель
	Model *string
	// PartNumber — парт-номер
	PartNumber *string
	// Slot — слот/посадочное место
	Slot *string
	// Capacity — ёмкость (байты, может быть nil)
	Capacity *int64
	// Speed — скорость (МГц/МТ-с, может быть nil)
	Speed *int
	// SerialNumber — основной серийный номер (производителя)
	SerialNumber *string
	// SerialNumberYadro — внутренний серийный номер в системе Ядро
	SerialNumberYadro *string
	// Status — статус здоровья (OK, WARNING, CRITICAL, UNKNOWN, REPLACED)
	Status string
	// Metadata — произвольные структурированные атрибуты
	Metadata map[string]any
	// DataSource — происхождение записи (MANUAL)
	DataSource string
	// InstalledBy — кто установил (sub из JWT)
	InstalledBy *string
	// Notes — заметки
	Notes *string

	// --- Заполняются при замене ---

	// ReplacedAt — когда комплектующее было заменено
	ReplacedAt *time.Time
	// ReplacedBy — кто выполнил замену (sub из JWT)
	ReplacedBy *string
	// ReplacementReason — причина замены
	ReplacementReason *string
	// ReplacesComponentID — ID предшественника (линия преемственности old → new).
	// Хранится значением, без FK: история должна переживать удаление предшественника.
	ReplacesComponentID *string

	// CreatedAt — время создания записи
	CreatedAt time.Time
	// UpdatedAt — время последнего изменения
	UpdatedAt time.Time
}

// HasIdentity сообщает, задан ли хотя бы один серийный номер.
func (c *Component) HasIdentity() bool {
	return deref(c.SerialNumber) != "" || deref(c.SerialNumberYadro) != ""
}

// IdentityValues возвращает непустые серийные номера комплектующего.
func (c *Component) IdentityValues() []string {
	var vals []string
	if v := deref(c.SerialNumber); v != "" {
		vals = append(vals, v)
	}
	if v := deref(c.SerialNumberYadro); v != "" {
		vals = append(vals, v)
	}
	return vals
}

// Snapshot возвращает снимок бизнес-полей комплектующего для истории.
// Снимок включает все значимые поля, а не только изменённые:
// записи истории должны быть самодостаточными.
func (c *Component) Snapshot() map[string]any {
	return map[string]any{
		"name":              c.Name,
		"manufacturer":      c.Manufacturer,
		"model":             c.Model,
		"partNumber":        c.PartNumber,
		"slot":              c.Slot,
		"capacity":          c.Capacity,
		"speed":             c.Speed,
		"serialNumber":      c.SerialNumber,
		"serialNumberYadro": c.SerialNumberYadro,
		"status":            c.Status,
		"notes":             c.Notes,
	}
}

// ComponentWithServer — комплектующее вместе с кратким описанием его сервера.
// Используется в поиске и при описании конфликтов серийных номеров.
type ComponentWithServer struct {
	Component
	Server ServerRef
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
