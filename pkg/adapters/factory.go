package adapters

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Constructor возвращает новый адаптер, еще не подключенный к БД
type Constructor func() Adapter

// Factory хранит конструкторы адаптеров по типу СУБД.
// Пакеты драйверов регистрируют себя в init().
type Factory struct {
	mu       sync.RWMutex
	registry map[string]Constructor
}

// NewFactory создает пустую фабрику
func NewFactory() *Factory {
	return &Factory{registry: make(map[string]Constructor)}
}

// Register добавляет конструктор; повторная регистрация заменяет прежний
func (f *Factory) Register(dbType string, constructor Constructor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registry[dbType] = constructor
}

// Types возвращает зарегистрированные типы в алфавитном порядке
func (f *Factory) Types() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	types := make([]string, 0, len(f.registry))
	for dbType := range f.registry {
		types = append(types, dbType)
	}
	sort.Strings(types)
	return types
}

func (f *Factory) lookup(dbType string) (Constructor, error) {
	f.mu.RLock()
	constructor, ok := f.registry[dbType]
	f.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown database type: %s (available types: %v)", dbType, f.Types())
	}
	return constructor, nil
}

// Create проверяет конфигурацию, создает адаптер и подключается к БД
func (f *Factory) Create(ctx context.Context, cfg Config) (Adapter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	constructor, err := f.lookup(cfg.Type)
	if err != nil {
		return nil, err
	}

	adapter := constructor()
	if err := adapter.Connect(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Type, err)
	}
	return adapter, nil
}

// OpenTable подключается к БД и возвращает TableWriter для таблицы.
// Стратегия и имя таблицы проверяются до подключения. Writer владеет
// адаптером: закрывать нужно writer.Adapter().
func (f *Factory) OpenTable(ctx context.Context, cfg Config, table, strategy string, batchSize int) (*TableWriter, error) {
	s, err := ParseStrategy(strategy)
	if err != nil {
		return nil, err
	}
	if table == "" {
		return nil, fmt.Errorf("table name is required")
	}

	adapter, err := f.Create(ctx, cfg)
	if err != nil {
		return nil, err
	}

	w, err := NewTableWriter(adapter, table, s, batchSize)
	if err != nil {
		adapter.Close(ctx)
		return nil, err
	}
	return w, nil
}

var defaultFactory = NewFactory()

// Register регистрирует адаптер в фабрике по умолчанию.
// Вызывается из init() пакетов драйверов:
//
//	func init() {
//	    adapters.Register("postgres", func() adapters.Adapter {
//	        return &Adapter{}
//	    })
//	}
func Register(dbType string, constructor Constructor) {
	defaultFactory.Register(dbType, constructor)
}

// RegisteredTypes возвращает типы из фабрики по умолчанию
func RegisteredTypes() []string {
	return defaultFactory.Types()
}

// New создает и подключает адаптер через фабрику по умолчанию
//
//	adapter, err := adapters.New(ctx, adapters.Config{Type: "sqlite", DSN: "users.db"})
//	if err != nil {
//	    return err
//	}
//	defer adapter.Close(ctx)
func New(ctx context.Context, cfg Config) (Adapter, error) {
	return defaultFactory.Create(ctx, cfg)
}

// NewWithoutConnect создает адаптер без подключения
func NewWithoutConnect(dbType string) (Adapter, error) {
	constructor, err := defaultFactory.lookup(dbType)
	if err != nil {
		return nil, err
	}
	return constructor(), nil
}

// OpenTable - Factory.OpenTable для фабрики по умолчанию
func OpenTable(ctx context.Context, cfg Config, table, strategy string, batchSize int) (*TableWriter, error) {
	return defaultFactory.OpenTable(ctx, cfg, table, strategy, batchSize)
}
