package memory

// Read helpers against committed state ---------------------------------------

// GetCulture retrieves a culture by ID from committed state.
func (s *Store) GetCulture(id string) (Culture, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.state.cultures[id]
	if !ok {
		return Culture{}, false
	}
	return cloneCulture(c), true
}

// GetContainer retrieves a container by ID from committed state.
func (s *Store) GetContainer(id string) (Container, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.state.containers[id]
	if !ok {
		return Container{}, false
	}
	return cloneContainer(c), true
}

// GetProcessTemplate retrieves a template by ID from committed state.
func (s *Store) GetProcessTemplate(id string) (ProcessTemplate, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.state.templates[id]
	if !ok {
		return ProcessTemplate{}, false
	}
	return cloneTemplate(t), true
}

// GetExecutedProcess retrieves a process run by ID from committed state.
func (s *Store) GetExecutedProcess(id string) (ExecutedProcess, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.state.processes[id]
	if !ok {
		return ExecutedProcess{}, false
	}
	return cloneProcess(p), true
}

// GetExecutedStep retrieves an executed step by ID from committed state.
func (s *Store) GetExecutedStep(id string) (ExecutedStep, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.state.steps[id]
	if !ok {
		return ExecutedStep{}, false
	}
	return cloneStep(st), true
}

// ListCultures returns all cultures from committed state.
func (s *Store) ListCultures() []Culture {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newTransactionView(&s.state).ListCultures()
}

// ListContainers returns all containers from committed state.
func (s *Store) ListContainers() []Container {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newTransactionView(&s.state).ListContainers()
}

// ListProcessTemplates returns all templates from committed state.
func (s *Store) ListProcessTemplates() []ProcessTemplate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	view := transactionView{state: &s.state}
	return view.ListProcessTemplates()
}

// ListExecutedProcesses returns all process runs from committed state.
func (s *Store) ListExecutedProcesses() []ExecutedProcess {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newTransactionView(&s.state).ListExecutedProcesses()
}

// ListProcessSteps returns the steps of one process from committed state in
// step-number order.
func (s *Store) ListProcessSteps(processID string) []ExecutedStep {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newTransactionView(&s.state).ListProcessSteps(processID)
}

// ListDeviations returns all deviations from committed state.
func (s *Store) ListDeviations() []Deviation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newTransactionView(&s.state).ListDeviations()
}

// ListTasks returns all tasks from committed state.
func (s *Store) ListTasks() []Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newTransactionView(&s.state).ListTasks()
}

// ListContainerHistory returns one container's audit trail from committed state.
func (s *Store) ListContainerHistory(containerID string) []ContainerHistoryEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	view := transactionView{state: &s.state}
	return view.ListContainerHistory(containerID)
}

// ListCultureHistory returns a culture's full audit trail from committed state.
func (s *Store) ListCultureHistory(cultureID string) []ContainerHistoryEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	view := transactionView{state: &s.state}
	return view.ListCultureHistory(cultureID)
}
