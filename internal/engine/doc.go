// Package engine выполняет flows: ведёт execution по индексам узлов,
// диспетчеризует узлы по типу и управляет жизненным циклом
// (running → waiting → completed/failed).
//
// Engine зависит от узких интерфейсов (хранилища, мессенджер,
// планировщик отложенных задач), конкретные реализации живут в
// repo, gateway и delayqueue.
package engine
