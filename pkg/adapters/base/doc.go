// Package base содержит общую для SQL адаптеров логику: описание диалектов
// (квотирование, плейсхолдеры, лимиты параметров) и запись таблиц
// многострочными INSERT в транзакции поверх database/sql.
package base
