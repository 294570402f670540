package srv

type Srv struct {
	rbac     *RBACSrv
	scanner  Scanner
	notifier Notifier
}

type ApplyFunc func(*Srv)

func SetupSrvs(opts ...ApplyFunc) *Srv {
	a := &Srv{
		rbac:     SetupRBACSrv(), // 角色鉴权
		scanner:  NoopScanner{},
		notifier: NoopNotifier{},
	}

	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (s *Srv) RBAC() *RBACSrv {
	return s.rbac
}

func (s *Srv) Scanner() Scanner {
	return s.scanner
}

func (s *Srv) Notifier() Notifier {
	return s.notifier
}

func ApplyScanner(scanner Scanner) ApplyFunc {
	return func(s *Srv) {
		if scanner != nil {
			s.scanner = scanner
		}
	}
}

func ApplyNotifier(notifier Notifier) ApplyFunc {
	return func(s *Srv) {
		if notifier != nil {
			s.notifier = notifier
		}
	}
}
