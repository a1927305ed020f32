package domain

import "errors"

// Ошибки биллинга и генерации, по которым ветвится поведение вызывающего кода
var (
	// ErrStorageUnavailable хранилище счётчиков недоступно; мутирующие операции не продолжаются
	ErrStorageUnavailable = errors.New("counter storage unavailable")

	// ErrNoAllowanceRemaining лимит генераций исчерпан; вызывающий показывает покупку, а не ретраит
	ErrNoAllowanceRemaining = errors.New("no generation allowance remaining")

	// ErrPurchaseRequestFailed запрос покупки у платформы не прошёл или отменён
	ErrPurchaseRequestFailed = errors.New("purchase request failed")

	// ErrAlreadyOwned продукт уже куплен; триггерит повторный restore-обход
	ErrAlreadyOwned = errors.New("product already owned")

	// ErrPlatformUnsupported платформа без поддержки покупок
	ErrPlatformUnsupported = errors.New("purchases not supported on this platform")

	// ErrUnknownProduct продукт вне каталога
	ErrUnknownProduct = errors.New("unknown product")

	// ErrStoryNotFound история или черновик не найдены
	ErrStoryNotFound = errors.New("story not found")
)

// BusinessError ошибка бизнес-логики, которая уже залогирована в UseCase
type BusinessError struct {
	Err error
}

func (e *BusinessError) Error() string {
	return e.Err.Error()
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func WrapBusinessError(err error) error {
	if err == nil {
		return nil
	}
	return &BusinessError{Err: err}
}

func IsBusinessError(err error) bool {
	var businessErr *BusinessError
	return errors.As(err, &businessErr)
}
