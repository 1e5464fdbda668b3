package service

// pageOffset проверяет номер страницы и возвращает смещение.
// Первая страница допустима всегда, даже при пустом списке.
func pageOffset(page, size, total int) (int, error) {
	if page < 1 {
		return 0, ErrInvalidPage
	}
	offset := (page - 1) * size
	if page > 1 && offset >= total {
		return 0, ErrInvalidPage
	}
	return offset, nil
}
